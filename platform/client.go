// Package platform talks to the advertising platform: music lookup, custom
// music upload and campaign creation.
package platform

import (
	"context"
	"time"

	"github.com/tbxark/adagent/types"
)

type MusicInfo struct {
	ID       string
	Title    string
	Artist   string
	Duration time.Duration
	Usable   bool
}

type Creative struct {
	Text    string `json:"text"`
	CTA     string `json:"cta"`
	MusicID string `json:"music_id,omitempty"`
}

// Payload is the campaign creation request body.
type Payload struct {
	CampaignName string   `json:"campaign_name"`
	Objective    string   `json:"objective"`
	Creative     Creative `json:"creative"`
}

func PayloadFrom(s types.Snapshot) Payload {
	return Payload{
		CampaignName: s.CampaignName,
		Objective:    s.Objective,
		Creative: Creative{
			Text:    s.AdText,
			CTA:     s.CTA,
			MusicID: s.MusicID,
		},
	}
}

type Campaign struct {
	CampaignID string
	AdID       string
	Status     string
	ReviewETA  string
}

type Client interface {
	LookupMusic(ctx context.Context, id string) (*MusicInfo, error)
	UploadMusic(ctx context.Context, fileRef string) (string, error)
	CreateCampaign(ctx context.Context, payload Payload) (*Campaign, error)
}

// Factory builds a client bound to an access token.
type Factory func(accessToken string) Client
