package town

import "github.com/townsquare-live/townsquare/backend/go/internal/v1/auth"

// PlayerSession binds one player to one controller. The session token is the
// only credential a client holds after joining; the video token is the
// capability it presents to the media provider.
type PlayerSession struct {
	sessionToken string
	player       *Player
	videoToken   string
}

func newPlayerSession(player *Player, videoToken string) *PlayerSession {
	return &PlayerSession{
		sessionToken: auth.NewSessionToken(),
		player:       player,
		videoToken:   videoToken,
	}
}

func (s *PlayerSession) SessionToken() string { return s.sessionToken }

func (s *PlayerSession) Player() *Player { return s.player }

func (s *PlayerSession) VideoToken() string { return s.videoToken }
