package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftvista/showreel-api/internal/prompt"
	"github.com/craftvista/showreel-api/internal/script"
	"github.com/craftvista/showreel-api/internal/storage"
	"github.com/craftvista/showreel-api/internal/videogen"
)

type fakeScripts struct{ text string }

func (f fakeScripts) Generate(context.Context, script.Product) string { return f.text }

type fakePrompts struct{ text string }

func (f fakePrompts) Generate(context.Context, prompt.Product) string { return f.text }

type fakeSynth struct {
	dir   string
	err   error
	calls int
	path  string
}

func (f *fakeSynth) Synthesize(_ context.Context, _, _ string, _ int64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	f.path = filepath.Join(f.dir, "audio.mp3")
	if err := os.WriteFile(f.path, []byte("mp3"), 0600); err != nil {
		return "", err
	}
	return f.path, nil
}

type fakeImages struct{ err error }

func (f fakeImages) Fetch(context.Context, string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte{0xff, 0xd8}, "image/jpeg", nil
}

type fakeTokens struct{ err error }

func (f fakeTokens) AccessToken(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-1", nil
}

type fakeVideo struct {
	submitErr   error
	pollErr     error
	deleteCalls atomic.Int32
	submitted   []videogen.SubmitInput
}

func (f *fakeVideo) Submit(_ context.Context, _ string, in videogen.SubmitInput) (videogen.Operation, error) {
	if f.submitErr != nil {
		return videogen.Operation{}, f.submitErr
	}
	f.submitted = append(f.submitted, in)
	return videogen.Operation{Name: "operations/op-1"}, nil
}

func (f *fakeVideo) Poll(context.Context, string, videogen.Operation) (string, error) {
	if f.pollErr != nil {
		return "", f.pollErr
	}
	return "gs://staging/products/p1/out.mp4", nil
}

func (f *fakeVideo) DeleteStaging(context.Context, string, string) error {
	f.deleteCalls.Add(1)
	return nil
}

type fakePublisher struct {
	videoErr   error
	audioErr   error
	videoCalls int
	audioPaths []string
}

func (f *fakePublisher) PublishVideo(_ context.Context, _, _ string, _ int64) (string, error) {
	f.videoCalls++
	if f.videoErr != nil {
		return "", f.videoErr
	}
	return "https://cdn.example.com/video/upload/v1/videos/products/p.mp4", nil
}

func (f *fakePublisher) PublishAudio(_ context.Context, localPath, _ string, _ int64) (string, error) {
	if f.audioErr != nil {
		return "", f.audioErr
	}
	f.audioPaths = append(f.audioPaths, localPath)
	return "https://cdn.example.com/video/upload/v1/videos/audio/a.mp3", nil
}

type fakeComposer struct{ err error }

func (f fakeComposer) PlaybackURL(videoURL, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return videoURL + "?overlay=audio", nil
}

type testEnv struct {
	synth     *fakeSynth
	video     *fakeVideo
	publisher *fakePublisher
	composer  *fakeComposer
	images    *fakeImages
	tokens    *fakeTokens
	service   *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		synth:     &fakeSynth{dir: t.TempDir()},
		video:     &fakeVideo{},
		publisher: &fakePublisher{},
		composer:  &fakeComposer{},
		images:    &fakeImages{},
		tokens:    &fakeTokens{},
	}
	env.service = NewService(Dependencies{
		Scripts:       fakeScripts{text: "a warm narration"},
		Prompts:       fakePrompts{text: "a cinematic prompt"},
		Synth:         env.synth,
		Images:        env.images,
		Tokens:        env.tokens,
		Video:         env.video,
		Publisher:     env.publisher,
		Composer:      env.composer,
		Temp:          storage.NewTempStore(t.TempDir()),
		StagingBucket: "staging-bucket",
		Logger:        slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	return env
}

func validRequest() GenerationRequest {
	return GenerationRequest{
		ProductID: "p1",
		Title:     "Ceramic Vase",
		Category:  "Pottery",
		ImageURL:  "https://images.example.com/p1.jpg",
		ArtisanID: "a1",
		Options:   DefaultOptions(),
	}
}

func TestGenerate_FullSuccessWithAudio(t *testing.T) {
	env := newTestEnv(t)

	res := env.service.Generate(context.Background(), validRequest())

	require.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.BaseVideoURL)
	assert.NotEqual(t, res.BaseVideoURL, res.PlaybackURL)
	assert.NotEmpty(t, res.AudioURL)
	assert.Equal(t, "a warm narration", res.AudioScript)
	assert.Equal(t, "a cinematic prompt", res.VideoPrompt)
	assert.True(t, res.HasAudio)
	assert.Equal(t, 8, res.Duration)
	assert.Equal(t, "16:9", res.AspectRatio)
	assert.False(t, res.GeneratedAt.IsZero())

	assert.Equal(t, int32(1), env.video.deleteCalls.Load(), "staging deleted exactly once")
	assert.NoFileExists(t, env.synth.path, "temp audio removed")

	require.Len(t, env.video.submitted, 1)
	in := env.video.submitted[0]
	assert.Equal(t, "a cinematic prompt", in.Prompt)
	assert.Equal(t, "gs://staging-bucket/products/p1", in.StorageURI)
	assert.Equal(t, "image/jpeg", in.MimeType)
}

func TestGenerate_NoAudioRequested(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.Options.IncludeAudio = false
	res := env.service.Generate(context.Background(), req)

	require.True(t, res.Success)
	assert.Empty(t, res.AudioURL)
	assert.Empty(t, res.AudioScript)
	assert.False(t, res.HasAudio)
	assert.Equal(t, res.BaseVideoURL, res.PlaybackURL)
	assert.Zero(t, env.synth.calls)
}

func TestGenerate_AudioSynthesisFailureIsAbsorbed(t *testing.T) {
	env := newTestEnv(t)
	env.synth.err = errors.New("rate limited")

	res := env.service.Generate(context.Background(), validRequest())

	require.True(t, res.Success, "silent video is a valid outcome")
	assert.Empty(t, res.AudioURL)
	assert.False(t, res.HasAudio)
	assert.Equal(t, res.BaseVideoURL, res.PlaybackURL)
}

func TestGenerate_AudioPublishFailureIsAbsorbed(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.audioErr = errors.New("upload rejected")

	res := env.service.Generate(context.Background(), validRequest())

	require.True(t, res.Success)
	assert.Empty(t, res.AudioURL)
	assert.Equal(t, res.BaseVideoURL, res.PlaybackURL)
	assert.NoFileExists(t, env.synth.path, "temp audio removed even when publish fails")
}

func TestGenerate_PollTimeoutIsFatal(t *testing.T) {
	env := newTestEnv(t)
	env.video.pollErr = videogen.ErrPollTimeout

	res := env.service.Generate(context.Background(), validRequest())

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
	assert.Zero(t, env.publisher.videoCalls, "no video published")
	assert.Zero(t, env.video.deleteCalls.Load(), "no staging location was obtained")
	assert.NoFileExists(t, env.synth.path)
}

func TestGenerate_VideoPublishFailureCompensatesStaging(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.videoErr = errors.New("publish video: upstream down")

	res := env.service.Generate(context.Background(), validRequest())

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "publish video")
	assert.Equal(t, int32(1), env.video.deleteCalls.Load(), "exactly one staging deletion attempted")
	assert.NoFileExists(t, env.synth.path)
}

func TestGenerate_TokenFailureAbortsBeforeSubmit(t *testing.T) {
	env := newTestEnv(t)
	env.tokens.err = errors.New("token exchange failed")

	res := env.service.Generate(context.Background(), validRequest())

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "access token")
	assert.Empty(t, env.video.submitted)
	assert.Zero(t, env.video.deleteCalls.Load())
}

func TestGenerate_ImageFetchFailureIsFatal(t *testing.T) {
	env := newTestEnv(t)
	env.images.err = errors.New("status 404")

	res := env.service.Generate(context.Background(), validRequest())

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "fetch source image")
}

func TestGenerate_ComposerFailureFallsBackToBaseURL(t *testing.T) {
	env := newTestEnv(t)
	env.composer.err = errors.New("not a provider URL")

	res := env.service.Generate(context.Background(), validRequest())

	require.True(t, res.Success)
	assert.NotEmpty(t, res.AudioURL)
	assert.Equal(t, res.BaseVideoURL, res.PlaybackURL)
	assert.Equal(t, int32(1), env.video.deleteCalls.Load())
}

func TestGenerate_InvalidRequest(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		mutate func(*GenerationRequest)
	}{
		{"missing product id", func(r *GenerationRequest) { r.ProductID = "" }},
		{"missing artisan id", func(r *GenerationRequest) { r.ArtisanID = "" }},
		{"bad image url", func(r *GenerationRequest) { r.ImageURL = "not-a-url" }},
		{"bad aspect ratio", func(r *GenerationRequest) { r.Options.AspectRatio = "4:3" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			res := env.service.Generate(context.Background(), req)
			require.False(t, res.Success)
			assert.Contains(t, res.Error, "invalid request")
		})
	}
	assert.Empty(t, env.video.submitted, "no provider calls for invalid requests")
}

func TestGenerate_DefaultsApplied(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.Options = GenerationOptions{IncludeAudio: true}
	res := env.service.Generate(context.Background(), req)

	require.True(t, res.Success)
	assert.Equal(t, "16:9", res.AspectRatio)
	assert.Equal(t, 8, res.Duration)

	require.Len(t, env.video.submitted, 1)
	assert.Equal(t, "720p", env.video.submitted[0].Resolution)
}

type panickyTokens struct{}

func (panickyTokens) AccessToken(context.Context) (string, error) { panic("boom") }

func TestGenerate_PanicNeverEscapes(t *testing.T) {
	env := newTestEnv(t)
	env.service.deps.Tokens = panickyTokens{}

	var res GenerationResult
	require.NotPanics(t, func() {
		res = env.service.Generate(context.Background(), validRequest())
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "internal error")
}

func TestGenerationResult_MarketingVideo(t *testing.T) {
	env := newTestEnv(t)
	env.service.now = func() time.Time { return time.Unix(1700000000, 0) }

	res := env.service.Generate(context.Background(), validRequest())
	require.True(t, res.Success)

	mv := res.MarketingVideo()
	require.NotNil(t, mv)
	assert.Equal(t, res.PlaybackURL, mv.URL)
	assert.Equal(t, res.BaseVideoURL, mv.BaseVideoURL)
	require.NotNil(t, mv.AudioURL)
	assert.Equal(t, res.AudioURL, *mv.AudioURL)
	require.NotNil(t, mv.AudioScript)
	assert.True(t, mv.HasAudio)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), mv.GeneratedAt)

	failure := GenerationResult{Error: "nope"}
	assert.Nil(t, failure.MarketingVideo())

	silent := GenerationResult{Success: true, BaseVideoURL: "u", PlaybackURL: "u"}
	mv = silent.MarketingVideo()
	require.NotNil(t, mv)
	assert.Nil(t, mv.AudioURL)
	assert.Nil(t, mv.AudioScript)
}

func TestGenerationResult_Status(t *testing.T) {
	assert.Equal(t, StatusCompleted, GenerationResult{Success: true}.Status())
	assert.Equal(t, StatusFailed, GenerationResult{Error: "x"}.Status())
}
