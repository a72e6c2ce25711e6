// Package types defines shared value types and constants for the application.
package types

// --- Core Domain Types ---

// TownIDType represents a unique identifier for a town.
type TownIDType string

// PlayerIDType represents a unique identifier for a player.
type PlayerIDType string

// DirectionType is the facing direction a player reports with its location.
type DirectionType string

// Direction constants mirror the four sprite orientations the client renders.
const (
	DirectionFront DirectionType = "front"
	DirectionBack  DirectionType = "back"
	DirectionLeft  DirectionType = "left"
	DirectionRight DirectionType = "right"
)

// NoTopic is the sentinel topic for a conversation area that has not been
// activated. Areas carrying it are never installed.
const NoTopic = "(No topic)"

// UserLocation is a player's position as reported by its client. The
// ConversationLabel, when present, names the conversation area the client
// believes it is in; the server trusts it over the coordinates.
type UserLocation struct {
	X                 float64       `json:"x"`
	Y                 float64       `json:"y"`
	Rotation          DirectionType `json:"rotation"`
	Moving            bool          `json:"moving"`
	ConversationLabel string        `json:"conversationLabel,omitempty"`
}

// BoundingBox is an axis-aligned rectangle whose (X, Y) is the center.
// Membership and overlap are computed on the open rectangle, so points on
// the boundary are outside and rectangles sharing an edge do not overlap.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether (x, y) lies strictly inside the box.
func (b BoundingBox) Contains(x, y float64) bool {
	halfW := b.Width / 2
	halfH := b.Height / 2
	return b.X-halfW < x && x < b.X+halfW &&
		b.Y-halfH < y && y < b.Y+halfH
}

// ContainsLocation reports whether a player at loc is strictly inside the box.
func (b BoundingBox) ContainsLocation(loc UserLocation) bool {
	return b.Contains(loc.X, loc.Y)
}

// Overlaps reports whether the open rectangles of b and other intersect.
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	bw, bh := b.Width/2, b.Height/2
	ow, oh := other.Width/2, other.Height/2
	return b.X-bw < other.X+ow && other.X-ow < b.X+bw &&
		b.Y-bh < other.Y+oh && other.Y-oh < b.Y+bh
}

// TownSummary is the public listing entry for a town.
type TownSummary struct {
	TownID           TownIDType `json:"coveyTownID"`
	FriendlyName     string     `json:"friendlyName"`
	CurrentOccupancy int        `json:"currentOccupancy"`
	MaximumOccupancy int        `json:"maximumOccupancy"`
}
