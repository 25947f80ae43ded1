package sentiment

// Labels for the five 20-point sentiment bands.
const (
	LabelEcstatic   = "ecstatic"
	LabelUpbeat     = "upbeat"
	LabelAnxious    = "anxious"
	LabelFrustrated = "frustrated"
	LabelOutraged   = "outraged"
)

// Label maps a sentiment score to its band.
func Label(sentiment int) string {
	switch {
	case sentiment >= 80:
		return LabelEcstatic
	case sentiment >= 60:
		return LabelUpbeat
	case sentiment >= 40:
		return LabelAnxious
	case sentiment >= 20:
		return LabelFrustrated
	default:
		return LabelOutraged
	}
}
