package compose

import "crypto-herald/internal/domain"

const (
	ColorRed       = 0xff0000
	ColorDarkOrng  = 0xff8c00
	ColorOrange    = 0xffa500
	ColorAmber     = 0xff6600
	ColorYellow    = 0xffff00
	ColorGold      = 0xf1c40f
	ColorGreen     = 0x00ff00
	ColorDarkGreen = 0x008000
	ColorBlue      = 0x3498db
	ColorPurple    = 0x9b59b6
)

// Band is a sentiment index range with its display attributes.
type Band struct {
	Label   string
	Display string
	Emoji   string
	Color   int
	Min     int
}

// Bands are ordered by lower bound. A value belongs to the last band whose
// Min it reaches, so ranges are half-open with the lower bound included.
var Bands = []Band{
	{Label: "extreme fear", Display: "Peur extrême", Emoji: "😱", Color: ColorRed, Min: 0},
	{Label: "fear", Display: "Peur", Emoji: "😨", Color: ColorDarkOrng, Min: 25},
	{Label: "neutral", Display: "Neutre", Emoji: "😐", Color: ColorYellow, Min: 45},
	{Label: "greed", Display: "Avidité", Emoji: "😊", Color: ColorGreen, Min: 55},
	{Label: "extreme greed", Display: "Avidité extrême", Emoji: "🤑", Color: ColorDarkGreen, Min: 75},
}

// SentimentBand maps a 0-100 index to its band. Out-of-range values clamp.
func SentimentBand(value int) Band {
	b := Bands[0]
	for _, candidate := range Bands {
		if value >= candidate.Min {
			b = candidate
		}
	}
	return b
}

// CategoryStyle holds the presentation of a news category.
type CategoryStyle struct {
	FlashLabel  string
	FlashColor  int
	DigestColor int
	Emoji       string
	Mention     string
}

var categoryStyles = map[domain.Category]CategoryStyle{
	domain.CategoryHack:       {FlashLabel: "ALERTE ROUGE", FlashColor: ColorRed, DigestColor: ColorRed, Emoji: "🚨", Mention: "@here"},
	domain.CategoryBullish:    {FlashLabel: "BREAKING BULLISH", FlashColor: ColorGreen, DigestColor: ColorGreen, Emoji: "🚀"},
	domain.CategoryRegulatory: {FlashLabel: "RÉGULATION", FlashColor: ColorOrange, DigestColor: ColorOrange, Emoji: "⚖️"},
	domain.CategoryGeneric:    {FlashLabel: "FLASH INFO", FlashColor: ColorYellow, DigestColor: ColorBlue, Emoji: "📰"},
}

// StyleFor returns the style of c, falling back to the generic style.
func StyleFor(c domain.Category) CategoryStyle {
	if s, ok := categoryStyles[c]; ok {
		return s
	}
	return categoryStyles[domain.CategoryGeneric]
}

// OpportunityStatus summarises the market mood for the opportunities post.
type OpportunityStatus struct {
	Label string
	Color int
}

func OpportunityStatusFor(fearGreed int) OpportunityStatus {
	switch {
	case fearGreed < 30:
		return OpportunityStatus{Label: "PRUDENCE", Color: ColorAmber}
	case fearGreed > 70:
		return OpportunityStatus{Label: "BULLISH", Color: ColorGreen}
	default:
		return OpportunityStatus{Label: "NEUTRE", Color: ColorGold}
	}
}
