package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tbxark/adagent/auth"
	"github.com/tbxark/adagent/console"
	"github.com/tbxark/adagent/platform"
	"github.com/tbxark/adagent/types"
)

type musicFlow int

const (
	flowMusicID musicFlow = iota
	flowCustomMusic
)

func (f musicFlow) String() string {
	if f == flowCustomMusic {
		return "custom_music"
	}
	return "music_id"
}

// runMusic drives the music sub-flows until music is settled. Each sub-flow
// may be entered at most MaxMusicAttempts times per call.
func (d *Driver) runMusic(ctx context.Context, start musicFlow) error {
	attempts := map[musicFlow]int{}
	flow := start
	for {
		attempts[flow]++
		if attempts[flow] > d.conf.Platform.MaxMusicAttempts {
			d.logger.Warn("Music sub-flow exhausted", "flow", flow, "attempts", attempts[flow]-1)
			d.phase = types.PhaseCollecting
			return fmt.Errorf("%w: %s", ErrTooManyAttempts, flow)
		}

		var (
			done bool
			next musicFlow
			err  error
		)
		switch flow {
		case flowCustomMusic:
			done, next, err = d.customMusicStep(ctx)
		default:
			done, next, err = d.musicIDStep(ctx)
		}
		if err != nil {
			return err
		}
		if done {
			d.phase = types.PhaseCollecting
			return nil
		}
		flow = next
	}
}

func (d *Driver) musicIDStep(ctx context.Context) (bool, musicFlow, error) {
	d.phase = types.PhaseAwaitingMusicID
	id, err := d.ask(ctx, "Enter TikTok music ID:")
	if err != nil {
		return false, 0, err
	}

	info, err := d.lookupMusic(ctx, id)
	if err == nil {
		d.metrics.MusicStep("lookup", "success")
		d.snapshot = d.snapshot.Set(types.SlotMusicID, info.ID).Set(types.SlotMusicOption, types.MusicExisting)
		d.io.Say(console.StyleSuccess, fmt.Sprintf("Music ID validated: %s by %s", info.Title, info.Artist))
		return true, 0, nil
	}
	d.metrics.MusicStep("lookup", failureLabel(err))
	d.logger.Info("Music lookup failed", "music_id", id, "error", err)
	d.io.Say(console.StyleError, "Music validation failed: "+errorMessage(err))

	return d.musicMenu(ctx, flowMusicID, "1. Try another music ID\n2. Upload custom music instead\n3. Skip music (if allowed)")
}

func (d *Driver) customMusicStep(ctx context.Context) (bool, musicFlow, error) {
	d.phase = types.PhaseAwaitingCustomMusic
	d.io.Say(console.StyleInfo, "Custom Music Upload (simulated for this demo).")
	answer, err := d.ask(ctx, "Upload custom music file? (yes/no):")
	if err != nil {
		return false, 0, err
	}
	if !d.commands.IsConfirm(answer) {
		d.io.Say(console.StyleInfo, "Let's explore other music options...")
		return false, flowMusicID, nil
	}

	fileRef, err := d.ask(ctx, "Enter music file path (simulated):")
	if err != nil {
		return false, 0, err
	}
	d.io.Say(console.StyleInfo, "Uploading music to TikTok...")
	id, err := d.uploadMusic(ctx, fileRef)
	if err == nil {
		d.metrics.MusicStep("upload", "success")
		d.snapshot = d.snapshot.Set(types.SlotMusicID, id).Set(types.SlotMusicOption, types.MusicCustom)
		d.io.Say(console.StyleSuccess, "Music uploaded successfully! Music ID: "+id)
		return true, 0, nil
	}
	d.metrics.MusicStep("upload", failureLabel(err))
	d.logger.Info("Music upload failed", "file", fileRef, "error", err)
	d.io.Say(console.StyleError, "Upload failed: "+errorMessage(err))

	return d.musicMenu(ctx, flowCustomMusic, "1. Try uploading again\n2. Use existing music instead\n3. Skip music (if allowed)")
}

// musicMenu handles the retry / switch / skip choice after a failed step.
// An unrecognized choice repeats the current sub-flow.
func (d *Driver) musicMenu(ctx context.Context, current musicFlow, options string) (bool, musicFlow, error) {
	other := flowCustomMusic
	if current == flowCustomMusic {
		other = flowMusicID
	}
	d.io.Say(console.StyleInfo, "Options:\n"+options)
	choice, err := d.ask(ctx, "Choice (1-3):")
	if err != nil {
		return false, 0, err
	}
	switch choice {
	case "1":
		return false, current, nil
	case "2":
		return false, other, nil
	case "3":
		if ok, fe := d.validator.CanSkipMusic(d.snapshot.Objective); !ok {
			d.io.Say(console.StyleError, "Cannot skip music: "+fe.Message)
			return false, current, nil
		}
		d.snapshot = d.snapshot.Set(types.SlotMusicOption, types.MusicNone).Set(types.SlotMusicID, "")
		d.io.Say(console.StyleSuccess, "Music skipped (allowed for this objective).")
		return true, 0, nil
	default:
		d.io.Say(console.StyleWarning, "Please choose 1, 2 or 3.")
		return false, current, nil
	}
}

func (d *Driver) lookupMusic(ctx context.Context, id string) (*platform.MusicInfo, error) {
	var info *platform.MusicInfo
	err := d.callPlatform(ctx, func(ctx context.Context, c platform.Client) (err error) {
		info, err = c.LookupMusic(ctx, id)
		return err
	})
	return info, err
}

func (d *Driver) uploadMusic(ctx context.Context, fileRef string) (string, error) {
	var id string
	err := d.callPlatform(ctx, func(ctx context.Context, c platform.Client) (err error) {
		id, err = c.UploadMusic(ctx, fileRef)
		return err
	})
	return id, err
}

// callPlatform runs call under the platform timeout. An expired token is
// refreshed once and the call repeated with the new client.
func (d *Driver) callPlatform(ctx context.Context, call func(context.Context, platform.Client) error) error {
	err := d.callOnce(ctx, call)
	if code, ok := platform.CodeOf(err); !ok || code != platform.CodeExpiredToken {
		return err
	}
	d.io.Say(console.StyleInfo, "Access token expired. Refreshing access token...")
	if rErr := d.submitter.Reauthorize(ctx); rErr != nil {
		d.io.Say(console.StyleError, "Token refresh failed. "+auth.ActionFor(rErr))
		return err
	}
	return d.callOnce(ctx, call)
}

func (d *Driver) callOnce(ctx context.Context, call func(context.Context, platform.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.conf.Timeouts.Platform)
	defer cancel()
	return call(ctx, d.submitter.Client())
}

func failureLabel(err error) string {
	if platform.IsTimeout(err) {
		return "timeout"
	}
	if code, ok := platform.CodeOf(err); ok {
		return strconv.Itoa(code)
	}
	return "error"
}

func errorMessage(err error) string {
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s (code %d)", apiErr.Message, apiErr.Code)
	}
	if platform.IsTimeout(err) {
		return platform.Classify(platform.CodeTimeout).Explanation
	}
	return err.Error()
}
