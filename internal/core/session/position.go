package session

// Position classifies where a detected face sits relative to the frame.
type Position int

const (
	PositionNoFace Position = iota
	PositionCentered
	PositionTooClose
	PositionTooFar
	PositionOffCenter
)

func (p Position) String() string {
	switch p {
	case PositionCentered:
		return "centered"
	case PositionTooClose:
		return "too-close"
	case PositionTooFar:
		return "too-far"
	case PositionOffCenter:
		return "off-center"
	default:
		return "no-face"
	}
}

// Direction names the edge of the central rectangle the face crossed.
type Direction string

const (
	DirectionNone  Direction = ""
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
)

// Placement is the full position classification for one detection.
type Placement struct {
	Position  Position
	Direction Direction
}

// Central rectangle: middle 50% horizontally, middle 60% vertically.
// Size window: longer box side within [20%, 70%] of the shorter frame dimension.
const (
	centralLeftFrac   = 0.25
	centralRightFrac  = 0.75
	centralTopFrac    = 0.20
	centralBottomFrac = 0.80
	minSizeFrac       = 0.20
	maxSizeFrac       = 0.70
)

// ClassifyPosition is a pure function of (bounding region, frame geometry).
// Exactly one position is reported; size violations take precedence over
// off-center violations.
func ClassifyPosition(region Region, frameWidth, frameHeight int) Placement {
	if frameWidth <= 0 || frameHeight <= 0 || region.Width <= 0 || region.Height <= 0 {
		return Placement{Position: PositionNoFace}
	}

	shorter := frameWidth
	if frameHeight < shorter {
		shorter = frameHeight
	}
	longerSide := region.Width
	if region.Height > longerSide {
		longerSide = region.Height
	}

	sizeFrac := float64(longerSide) / float64(shorter)
	if sizeFrac < minSizeFrac {
		return Placement{Position: PositionTooFar}
	}
	if sizeFrac > maxSizeFrac {
		return Placement{Position: PositionTooClose}
	}

	cx := float64(region.X) + float64(region.Width)/2
	cy := float64(region.Y) + float64(region.Height)/2

	left := centralLeftFrac * float64(frameWidth)
	right := centralRightFrac * float64(frameWidth)
	top := centralTopFrac * float64(frameHeight)
	bottom := centralBottomFrac * float64(frameHeight)

	switch {
	case cx < left:
		return Placement{Position: PositionOffCenter, Direction: DirectionLeft}
	case cx > right:
		return Placement{Position: PositionOffCenter, Direction: DirectionRight}
	case cy < top:
		return Placement{Position: PositionOffCenter, Direction: DirectionUp}
	case cy > bottom:
		return Placement{Position: PositionOffCenter, Direction: DirectionDown}
	}

	return Placement{Position: PositionCentered}
}
