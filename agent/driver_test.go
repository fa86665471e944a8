package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/adagent/auth"
	"github.com/tbxark/adagent/config"
	"github.com/tbxark/adagent/console"
	"github.com/tbxark/adagent/dialogue"
	"github.com/tbxark/adagent/llm"
	"github.com/tbxark/adagent/metrics"
	"github.com/tbxark/adagent/planner"
	"github.com/tbxark/adagent/platform"
	"github.com/tbxark/adagent/submit"
	"github.com/tbxark/adagent/types"
	"github.com/tbxark/adagent/validate"
)

var readySnapshot = types.Snapshot{
	CampaignName: "Summer Sale",
	Objective:    "TRAFFIC",
	AdText:       "Buy now!",
	CTA:          "Shop Now",
	MusicOption:  "NO_MUSIC",
}

type harness struct {
	io       *console.Script
	platform *platform.Mock
	session  *auth.Session
	metrics  *metrics.Metrics
	driver   *Driver
}

func newHarness(t *testing.T, completer llm.Completer, start types.Snapshot, answers ...string) *harness {
	t.Helper()
	conf := config.Default()
	v := validate.New(conf.Rules)
	prompts, err := dialogue.NewPromptBuilder(conf.Rules)
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())
	rec := dialogue.NewReconciler(completer, planner.New(v, conf.Rules.MaxAdTextLength), prompts, dialogue.WithMetrics(m))

	session := auth.NewSession(auth.NewMock(conf.Auth), time.Second)
	_, err = session.Login(context.Background(), "valid_code")
	require.NoError(t, err)
	pm := platform.NewMock(conf.Platform, conf.Auth.TokenSecret)
	ctrl := submit.New(v, pm.Client, session, session.Token().AccessToken, nil, conf.Retry,
		submit.WithMetrics(m),
		submit.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)

	io := console.NewScript(answers...)
	return &harness{
		io:       io,
		platform: pm,
		session:  session,
		metrics:  m,
		driver:   NewDriver(conf, v, rec, ctrl, io, WithMetrics(m), WithSnapshot(start)),
	}
}

// modelReply always answers with resp.
func modelReply(t *testing.T, resp types.TurnResponse) llm.Completer {
	t.Helper()
	raw, err := sonic.MarshalString(resp)
	require.NoError(t, err)
	return llm.CompleterFunc(func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return raw, nil
	})
}

func TestRunFallbackEndToEnd(t *testing.T) {
	h := newHarness(t, llm.Disabled{}, types.Snapshot{},
		"MyCampaign", "TRAFFIC", "Buy now!", "Shop Now", "NO_MUSIC", "yes")

	res, err := h.driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseDone, res.Phase)
	assert.Equal(t, types.Snapshot{
		CampaignName: "MyCampaign",
		Objective:    "TRAFFIC",
		AdText:       "Buy now!",
		CTA:          "Shop Now",
		MusicOption:  "NO_MUSIC",
	}, res.Snapshot)
	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.OK())
	assert.Len(t, h.platform.Calls(platform.OpCreateCampaign), 1)

	transcript := h.io.Transcript()
	assert.Contains(t, transcript, "Let's start with the campaign name")
	assert.Contains(t, transcript, "[Progress: 1/6 fields collected]")
	assert.Contains(t, transcript, "Still needed: Objective, Ad Text, CTA, Music Option, Music ID")
	assert.Contains(t, transcript, "All validations passed!")
	assert.Contains(t, transcript, "Ad campaign submitted successfully!")
	assert.Equal(t, 5.0, testutil.ToFloat64(h.metrics.ReconcileCounter(metrics.OutcomeModelError)))
}

func TestRunAbortKeyword(t *testing.T) {
	h := newHarness(t, llm.Disabled{}, types.Snapshot{}, "Acme Launch", "QUIT", "never read")

	res, err := h.driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseAborted, res.Phase)
	assert.Equal(t, "Acme Launch", res.Snapshot.CampaignName)
	assert.Nil(t, res.Outcome)
	assert.Equal(t, 1, h.io.Remaining())
	assert.Contains(t, h.io.Transcript(), "Ad creation cancelled.")
}

func TestRunEndsWhenInputCloses(t *testing.T) {
	h := newHarness(t, llm.Disabled{}, types.Snapshot{}, "Acme Launch")
	res, err := h.driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCollecting, res.Phase)
	assert.Equal(t, "Acme Launch", res.Snapshot.CampaignName)
}

func TestTurnAfterDoneFails(t *testing.T) {
	h := newHarness(t, llm.Disabled{}, types.Snapshot{}, "quit")
	_, err := h.driver.Run(context.Background())
	require.NoError(t, err)
	_, err = h.driver.Turn(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestDeclineKeepsSnapshot(t *testing.T) {
	h := newHarness(t, llm.Disabled{}, readySnapshot, "no")

	res, err := h.driver.Turn(context.Background(), "looks good")
	require.NoError(t, err)
	assert.Equal(t, types.StepValidation, res.Response.NextStep)
	assert.Equal(t, types.PhaseCollecting, res.Phase)
	assert.Equal(t, readySnapshot, res.Snapshot)
	assert.Nil(t, res.Outcome)
	assert.Empty(t, h.platform.Calls(platform.OpCreateCampaign))
	assert.Contains(t, h.io.Transcript(), "Submission cancelled.")
}

func TestEmptyModelValuesNeverOverwrite(t *testing.T) {
	start := types.Snapshot{CampaignName: "Acme Launch", Objective: "TRAFFIC"}
	completer := modelReply(t, types.TurnResponse{
		UserMessage:       "What should the ad say?",
		InternalReasoning: "Need ad text.",
		CollectedData:     types.Snapshot{},
		NextStep:          types.StepAdText,
	})
	h := newHarness(t, completer, start)

	res, err := h.driver.Turn(context.Background(), "hmm")
	require.NoError(t, err)
	assert.Equal(t, start, res.Snapshot)
	assert.Equal(t, "What should the ad say?", res.Message)
	assert.Equal(t, types.PhaseCollecting, res.Phase)
}

func TestModelValuesAreNormalized(t *testing.T) {
	completer := modelReply(t, types.TurnResponse{
		UserMessage:       "Ad text?",
		InternalReasoning: "Got objective.",
		CollectedData:     types.Snapshot{CampaignName: "Acme Launch", Objective: "conversions"},
		NextStep:          types.StepAdText,
	})
	h := newHarness(t, completer, types.Snapshot{CampaignName: "Acme Launch"})

	res, err := h.driver.Turn(context.Background(), "conversions please")
	require.NoError(t, err)
	assert.Equal(t, "CONVERSIONS", res.Snapshot.Objective)
}

func TestValidationFailureReturnsToCollecting(t *testing.T) {
	invalid := types.Snapshot{CampaignName: "ab", Objective: "TRAFFIC", AdText: "Hi", CTA: "Go", MusicOption: "NO_MUSIC"}
	completer := modelReply(t, types.TurnResponse{
		UserMessage:       "Let me validate.",
		InternalReasoning: "All set.",
		CollectedData:     invalid,
		NextStep:          types.StepValidation,
	})
	h := newHarness(t, completer, types.Snapshot{})

	res, err := h.driver.Turn(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCollecting, res.Phase)
	require.NotNil(t, res.Validation)
	assert.Contains(t, res.Validation.Errors, "campaign_name")
	assert.Empty(t, res.Snapshot.CampaignName)
	assert.Equal(t, "TRAFFIC", res.Snapshot.Objective)
	assert.Contains(t, h.io.Transcript(), "Please correct the errors above.")
	assert.Empty(t, h.io.Prompts())
}

func TestFallbackRecoversFromValidationFailure(t *testing.T) {
	h := newHarness(t, llm.Disabled{}, types.Snapshot{},
		"ab", "TRAFFIC", "Buy now!", "Shop Now", "NO_MUSIC", "Acme Launch", "yes")

	res, err := h.driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseDone, res.Phase)
	assert.Equal(t, "Acme Launch", res.Snapshot.CampaignName)
	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.OK())
	assert.Zero(t, h.io.Remaining())

	transcript := h.io.Transcript()
	assert.Contains(t, transcript, "Campaign name must be at least 3 characters")
	assert.Contains(t, transcript, "Let's collect again: Campaign Name")
	assert.Equal(t, 1, strings.Count(transcript, "Validation errors found"))
}

func TestFailedMusicLogicIsCollectedAgain(t *testing.T) {
	invalid := types.Snapshot{CampaignName: "Acme Launch", Objective: "CONVERSIONS", AdText: "Buy now!", CTA: "Shop Now", MusicOption: "NO_MUSIC"}
	h := newHarness(t, llm.Disabled{}, invalid)

	res, err := h.driver.Turn(context.Background(), "submit")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCollecting, res.Phase)
	assert.Empty(t, res.Snapshot.MusicOption)
	assert.Contains(t, h.io.Transcript(), "Music Option, Music ID")

	res, err = h.driver.Turn(context.Background(), "no music")
	require.NoError(t, err)
	assert.Equal(t, types.StepMusic, res.Response.NextStep)
	assert.Contains(t, res.Message, "music is required")
}

func musicPrompt(t *testing.T, s types.Snapshot, step types.NextStep) llm.Completer {
	return modelReply(t, types.TurnResponse{
		UserMessage:       "Let's sort out music.",
		InternalReasoning: "Music step.",
		CollectedData:     s,
		NextStep:          step,
	})
}

var conversionsSnapshot = types.Snapshot{CampaignName: "Acme Launch", Objective: "CONVERSIONS", AdText: "Buy now!", CTA: "Shop Now"}

func TestMusicIDFlowRetriesThenSucceeds(t *testing.T) {
	h := newHarness(t, musicPrompt(t, conversionsSnapshot, types.StepAskMusicID), conversionsSnapshot,
		"M000000000", "1", "M123456789")

	res, err := h.driver.Turn(context.Background(), "existing music")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCollecting, res.Phase)
	assert.Equal(t, "M123456789", res.Snapshot.MusicID)
	assert.Equal(t, types.MusicExisting, res.Snapshot.MusicOption)
	assert.Nil(t, res.MusicErr)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.MusicStepCounter("lookup", "40001")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.MusicStepCounter("lookup", "success")))
	assert.Contains(t, h.io.Transcript(), "[Progress: 6/6 fields collected]")
}

func TestMusicIDFlowStopsAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, musicPrompt(t, conversionsSnapshot, types.StepAskMusicID), conversionsSnapshot,
		"bad1", "1", "bad2", "1", "bad3", "1", "M123456789")

	res, err := h.driver.Turn(context.Background(), "existing music")
	require.NoError(t, err)
	assert.ErrorIs(t, res.MusicErr, ErrTooManyAttempts)
	assert.Equal(t, types.PhaseCollecting, res.Phase)
	assert.Empty(t, res.Snapshot.MusicID)
	assert.Equal(t, 1, h.io.Remaining())
	assert.Len(t, h.platform.Calls(platform.OpLookupMusic), 3)
}

func TestSwitchingSubFlowsIsBounded(t *testing.T) {
	var answers []string
	for i := 0; i < 10; i++ {
		answers = append(answers, "bad", "2", "no")
	}
	h := newHarness(t, musicPrompt(t, conversionsSnapshot, types.StepAskMusicID), conversionsSnapshot, answers...)

	res, err := h.driver.Turn(context.Background(), "existing")
	require.NoError(t, err)
	assert.ErrorIs(t, res.MusicErr, ErrTooManyAttempts)
	assert.Positive(t, h.io.Remaining())
}

func TestSkipNotAllowedLoopsBack(t *testing.T) {
	h := newHarness(t, musicPrompt(t, conversionsSnapshot, types.StepAskMusicID), conversionsSnapshot,
		"bad", "3", "M987654321")

	res, err := h.driver.Turn(context.Background(), "existing")
	require.NoError(t, err)
	assert.Equal(t, "M987654321", res.Snapshot.MusicID)
	assert.Contains(t, h.io.Transcript(), "Cannot skip music")
}

var trafficSnapshot = types.Snapshot{CampaignName: "Acme Launch", Objective: "TRAFFIC", AdText: "Buy now!", CTA: "Shop Now"}

func TestCustomMusicUpload(t *testing.T) {
	h := newHarness(t, musicPrompt(t, trafficSnapshot, types.StepAskCustomMusic), trafficSnapshot,
		"yes", "/music/jingle.mp3")

	res, err := h.driver.Turn(context.Background(), "upload")
	require.NoError(t, err)
	assert.Equal(t, types.MusicCustom, res.Snapshot.MusicOption)
	assert.Regexp(t, `^M\d{9}$`, res.Snapshot.MusicID)
	calls := h.platform.Calls(platform.OpUploadMusic)
	require.Len(t, calls, 1)
	assert.Equal(t, "/music/jingle.mp3", calls[0].Arg)
}

func TestCustomMusicDeclinedSwitchesToMusicID(t *testing.T) {
	h := newHarness(t, musicPrompt(t, trafficSnapshot, types.StepAskCustomMusic), trafficSnapshot,
		"no", "M555555555")

	res, err := h.driver.Turn(context.Background(), "upload")
	require.NoError(t, err)
	assert.Equal(t, types.MusicExisting, res.Snapshot.MusicOption)
	assert.Equal(t, "M555555555", res.Snapshot.MusicID)
	assert.Empty(t, h.platform.Calls(platform.OpUploadMusic))
}

func TestCustomUploadFailureSkip(t *testing.T) {
	h := newHarness(t, musicPrompt(t, trafficSnapshot, types.StepAskCustomMusic), trafficSnapshot,
		"yes", "song.mp3", "3")
	h.platform.Script(platform.OpUploadMusic, &platform.APIError{Code: platform.CodeServiceUnavailable, Message: "upload failed"})

	res, err := h.driver.Turn(context.Background(), "upload")
	require.NoError(t, err)
	assert.Equal(t, types.MusicNone, res.Snapshot.MusicOption)
	assert.Empty(t, res.Snapshot.MusicID)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.MusicStepCounter("upload", "50000")))
}

func TestAbortInsideSubFlow(t *testing.T) {
	h := newHarness(t, musicPrompt(t, trafficSnapshot, types.StepAskMusicID), trafficSnapshot, "cancel")

	res, err := h.driver.Turn(context.Background(), "existing")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseAborted, res.Phase)
}

func TestSubmitRetryAfterExpiredToken(t *testing.T) {
	h := newHarness(t, llm.Disabled{}, readySnapshot, "yes", "yes")
	original := h.session.Token().AccessToken
	h.platform.Script(platform.OpCreateCampaign, &platform.APIError{Code: platform.CodeExpiredToken, Message: "Invalid OAuth token"})

	res, err := h.driver.Turn(context.Background(), "submit it")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseDone, res.Phase)
	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.OK())
	assert.Equal(t, 2, res.Outcome.Attempts)

	calls := h.platform.Calls(platform.OpCreateCampaign)
	require.Len(t, calls, 2)
	assert.Equal(t, original, calls[0].Token)
	assert.NotEqual(t, original, calls[1].Token)
	assert.Contains(t, h.io.Prompts(), "Retry submission? (yes/no):")
	assert.Contains(t, h.io.Transcript(), "Refreshing access token...")
}

func TestPermanentSubmitFailure(t *testing.T) {
	h := newHarness(t, llm.Disabled{}, readySnapshot, "yes")
	h.platform.Script(platform.OpCreateCampaign, &platform.APIError{Code: platform.CodeGeoRestricted, Message: "region"})

	res, err := h.driver.Turn(context.Background(), "submit")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseDone, res.Phase)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, submit.KindPermanent, res.Outcome.Failure.Kind)
	assert.Contains(t, h.io.Transcript(), "cannot be retried automatically")
}

func TestHistoryIsPassedToModel(t *testing.T) {
	var prompts []string
	completer := llm.CompleterFunc(func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		prompts = append(prompts, userPrompt)
		return "", assert.AnError
	})
	h := newHarness(t, completer, types.Snapshot{})

	_, err := h.driver.Turn(context.Background(), "Acme Launch")
	require.NoError(t, err)
	_, err = h.driver.Turn(context.Background(), "TRAFFIC")
	require.NoError(t, err)

	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "- user: Acme Launch")
	history := h.driver.History()
	require.NotEmpty(t, history)
	assert.Equal(t, schema.Assistant, history[len(history)-1].Role)
}

func TestAgentRun(t *testing.T) {
	h := newHarness(t, llm.Disabled{}, types.Snapshot{})
	a := NewAgent("ad_campaign", "Collects a TikTok ad campaign", h.driver)
	assert.Equal(t, "ad_campaign", a.Name(context.Background()))

	iter := a.Run(context.Background(), &adk.AgentInput{Messages: []adk.Message{
		schema.UserMessage("Acme Launch"),
		schema.AssistantMessage("noted", nil),
	}})
	event, ok := iter.Next()
	require.True(t, ok)
	require.NoError(t, event.Err)
	assert.Equal(t, "ad_campaign", event.AgentName)
	assert.Nil(t, event.Action)
	assert.Contains(t, event.Output.MessageOutput.Message.Content, "objective")
	res, ok := event.Output.CustomizedOutput.(*TurnResult)
	require.True(t, ok)
	assert.Equal(t, "Acme Launch", res.Snapshot.CampaignName)
	_, ok = iter.Next()
	assert.False(t, ok)

	for _, input := range []*adk.AgentInput{nil, {}, {Messages: []adk.Message{schema.UserMessage("  ")}}} {
		event, ok = a.Run(context.Background(), input).Next()
		require.True(t, ok)
		assert.ErrorIs(t, event.Err, ErrNoUserInput)
	}
}

func TestAgentExitsWhenSessionEnds(t *testing.T) {
	h := newHarness(t, llm.Disabled{}, readySnapshot, "yes")
	runner := adk.NewRunner(context.Background(), adk.RunnerConfig{Agent: NewAgent("ad_campaign", "", h.driver)})

	iter := runner.Query(context.Background(), "submit")
	event, ok := iter.Next()
	require.True(t, ok)
	require.NoError(t, event.Err)
	require.NotNil(t, event.Action)
	assert.True(t, event.Action.Exit)
	res := event.Output.CustomizedOutput.(*TurnResult)
	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.OK())
	assert.Equal(t, types.PhaseDone, h.driver.Phase())

	event, ok = runner.Query(context.Background(), "again").Next()
	require.True(t, ok)
	assert.Nil(t, event.Output)
	assert.True(t, event.Action.Exit)
	assert.Len(t, h.platform.Calls(platform.OpCreateCampaign), 1)
}

func TestMusicLookupRefreshesExpiredToken(t *testing.T) {
	h := newHarness(t, musicPrompt(t, conversionsSnapshot, types.StepAskMusicID), conversionsSnapshot, "M123456789")
	original := h.session.Token().AccessToken
	h.platform.Script(platform.OpLookupMusic, &platform.APIError{Code: platform.CodeExpiredToken, Message: "Invalid OAuth token"})

	res, err := h.driver.Turn(context.Background(), "existing")
	require.NoError(t, err)
	assert.Equal(t, "M123456789", res.Snapshot.MusicID)
	assert.Equal(t, types.MusicExisting, res.Snapshot.MusicOption)

	calls := h.platform.Calls(platform.OpLookupMusic)
	require.Len(t, calls, 2)
	assert.Equal(t, original, calls[0].Token)
	assert.NotEqual(t, original, calls[1].Token)
	assert.Equal(t, calls[1].Token, h.session.Token().AccessToken)
	assert.Contains(t, h.io.Transcript(), "Refreshing access token")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.MusicStepCounter("lookup", "success")))
}

func TestMusicUploadRefreshesOnlyOnce(t *testing.T) {
	h := newHarness(t, musicPrompt(t, trafficSnapshot, types.StepAskCustomMusic), trafficSnapshot, "yes", "song.mp3", "3")
	expired := &platform.APIError{Code: platform.CodeExpiredToken, Message: "Invalid OAuth token"}
	h.platform.Script(platform.OpUploadMusic, expired, expired)

	res, err := h.driver.Turn(context.Background(), "upload")
	require.NoError(t, err)
	assert.Len(t, h.platform.Calls(platform.OpUploadMusic), 2)
	assert.Equal(t, types.MusicNone, res.Snapshot.MusicOption)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.MusicStepCounter("upload", "40003")))
}
