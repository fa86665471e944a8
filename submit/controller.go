// Package submit sends a validated campaign to the platform and drives the
// user-gated retry loop around it.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tbxark/adagent/auth"
	"github.com/tbxark/adagent/config"
	"github.com/tbxark/adagent/metrics"
	"github.com/tbxark/adagent/platform"
	"github.com/tbxark/adagent/types"
	"github.com/tbxark/adagent/validate"
)

// Consenter asks the user whether a failed submission should be retried.
type Consenter interface {
	ConfirmRetry(ctx context.Context, failure *Failure) (bool, error)
}

type ConsenterFunc func(ctx context.Context, failure *Failure) (bool, error)

func (f ConsenterFunc) ConfirmRetry(ctx context.Context, failure *Failure) (bool, error) {
	return f(ctx, failure)
}

type Controller struct {
	validator *validate.Validator
	factory   platform.Factory
	refresher auth.Refresher
	client    platform.Client
	consent   Consenter
	retry     config.Retry
	timeout   time.Duration
	metrics   *metrics.Metrics
	sleep     func(ctx context.Context, d time.Duration) error
}

type Option func(*Controller)

func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithSleep replaces the wait between retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

func New(validator *validate.Validator, factory platform.Factory, refresher auth.Refresher, accessToken string, consent Consenter, retry config.Retry, opts ...Option) *Controller {
	c := &Controller{
		validator: validator,
		factory:   factory,
		refresher: refresher,
		client:    factory(accessToken),
		consent:   consent,
		retry:     retry,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.consent == nil {
		c.consent = ConsenterFunc(func(context.Context, *Failure) (bool, error) { return false, nil })
	}
	if c.retry.MaxAttempts <= 0 {
		c.retry.MaxAttempts = 1
	}
	return c
}

// Client is the platform client bound to the latest credential.
func (c *Controller) Client() platform.Client {
	return c.client
}

// Reauthorize refreshes the credential and rebinds the client to it.
func (c *Controller) Reauthorize(ctx context.Context) error {
	token, err := c.refresher.Refresh(ctx)
	if err != nil {
		slog.Warn("Token refresh failed", "error", err)
		return err
	}
	c.client = c.factory(token.AccessToken)
	return nil
}

func (c *Controller) SetConsenter(consent Consenter) {
	c.consent = consent
}

func (c *Controller) Submit(ctx context.Context, s types.Snapshot) Outcome {
	if res := c.validator.All(s); !res.IsValid {
		return Outcome{Failure: &Failure{
			Message:        "campaign is not valid:\n" + types.FormatValidationErrors(res.Errors),
			Classification: platform.Classification{Explanation: "The campaign data failed validation.", Action: "Correct the listed fields and submit again."},
			Kind:           KindPermanent,
		}}
	}

	payload := platform.PayloadFrom(s)
	bo := c.newBackOff()
	for attempt := 1; ; attempt++ {
		campaign, err := c.create(ctx, payload)
		if err == nil {
			c.metrics.SubmissionAttempt("success")
			slog.Info("Campaign submitted", "campaign_id", campaign.CampaignID, "attempt", attempt)
			return Outcome{Success: campaign, Attempts: attempt}
		}

		failure := failureFrom(err)
		c.metrics.SubmissionAttempt(strconv.Itoa(failure.Code))
		slog.Warn("Campaign submission failed", "attempt", attempt, "code", failure.Code, "kind", failure.Kind, "error", err)
		done := func(kind Kind) Outcome {
			if kind != "" {
				failure.Kind = kind
			}
			return Outcome{Failure: failure, Attempts: attempt}
		}

		if failure.Kind == KindPermanent || ctx.Err() != nil {
			return done("")
		}
		if attempt >= c.retry.MaxAttempts {
			return done(KindTooManyAttempts)
		}
		ok, err := c.consent.ConfirmRetry(ctx, failure)
		if err != nil {
			slog.Warn("Retry consent failed", "error", err)
		}
		if err != nil || !ok {
			return done(KindDeclined)
		}

		if failure.Classification.RefreshFirst {
			if err := c.Reauthorize(ctx); err != nil {
				failure.Message = fmt.Sprintf("%s (refresh failed: %v)", failure.Message, err)
				return done(KindReauthRequired)
			}
			continue
		}
		if err := c.sleep(ctx, bo.NextBackOff()); err != nil {
			return done("")
		}
	}
}

func (c *Controller) create(ctx context.Context, payload platform.Payload) (*platform.Campaign, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	campaign, err := c.client.CreateCampaign(ctx, payload)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &platform.APIError{Code: platform.CodeTimeout, Message: "request timed out"}
	}
	return campaign, err
}

func (c *Controller) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	if c.retry.InitialInterval > 0 {
		bo.InitialInterval = c.retry.InitialInterval
	}
	if c.retry.MaxInterval > 0 {
		bo.MaxInterval = c.retry.MaxInterval
	}
	if c.retry.Multiplier > 0 {
		bo.Multiplier = c.retry.Multiplier
	}
	bo.Reset()
	return bo
}

func failureFrom(err error) *Failure {
	var apiErr *platform.APIError
	if !errors.As(err, &apiErr) {
		apiErr = &platform.APIError{Message: err.Error()}
		if platform.IsTimeout(err) {
			apiErr.Code = platform.CodeTimeout
		}
	}
	classification := platform.Classify(apiErr.Code)
	kind := KindRetryable
	switch {
	case apiErr.Code == platform.CodeTimeout:
		kind = KindTimeout
	case !classification.Retryable:
		kind = KindPermanent
	}
	return &Failure{
		Code:           apiErr.Code,
		Message:        apiErr.Message,
		Classification: classification,
		Kind:           kind,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
