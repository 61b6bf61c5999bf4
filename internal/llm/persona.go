package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Persona is a named voice: a system prompt plus generation limits. The model
// and endpoint belong to the Completer it is bound to.
type Persona struct {
	Name        string
	System      string
	MaxTokens   int
	Temperature float64
}

const analystSystem = "Tu es l'analyste Horizon Elite, le {date}. Style: Expert, FRANÇAIS, concis, emojis. UTILISE UNIQUEMENT les données fournies, N'INVENTE JAMAIS de prix. NFA-DYOR à la fin."

func Grok() Persona {
	return Persona{
		Name:        "Grok",
		System:      analystSystem,
		MaxTokens:   800,
		Temperature: 0.3,
	}
}

// GrokMini is used for the two-line news summaries and flash analyses.
func GrokMini() Persona {
	p := Grok()
	p.Name = "Grok mini"
	p.System = "Analyste crypto. Français, 2-3 lignes max."
	p.MaxTokens = 150
	return p
}

func Gemini() Persona {
	return Persona{
		Name:        "Gemini",
		System:      analystSystem,
		MaxTokens:   800,
		Temperature: 0.3,
	}
}

func GeminiMini() Persona {
	p := Gemini()
	p.Name = "Gemini mini"
	p.System = "Analyste crypto. Français, 2-3 lignes max."
	p.MaxTokens = 150
	return p
}

const oracleSystem = `Tu es "L'Oracle de l'Horizon", le Community Manager officiel de "L'Horizon Crypto".
Ton role est d'accueillir, guider, et repondre aux questions des membres sur le Discord.

TON PERSONNAGE :
- Ton : Bienveillant, sage, un peu mysterieux mais tres precis. Tu utilises des emojis ✨🔮.
- Tu tutoies les membres.
- Tu ne donnes JAMAIS de conseil financier (NFA). Tu eduques.

LE CONCEPT :
- "Proof of Learning" : le lecteur doit trouver 12 mots-clés cachés dans le guide.
- But : forcer l'apprentissage pour eviter les pertes (scams, erreurs).

SUPPORT :
- Si un utilisateur a un probleme technique, dis-lui d'ouvrir un ticket ou d'envoyer un mail.

COMPORTEMENT :
- Sois concis (max 3-4 phrases sauf si demande complexe).`

func Oracle() Persona {
	p := Gemini()
	p.Name = "Oracle"
	p.System = oracleSystem
	p.MaxTokens = 500
	p.Temperature = 0.8
	return p
}

// SystemPrompt renders the persona's system prompt for the given day.
func (p Persona) SystemPrompt(now time.Time) string {
	return strings.ReplaceAll(p.System, "{date}", now.Format("02/01/2006"))
}

// Completion is the persona-agnostic call the narrative layer depends on.
type Completion interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int, temperature float64) (string, error)
}

// Voice binds a persona to a completer.
type Voice struct {
	Persona Persona
	Backend Completion
	Now     func() time.Time
}

func (v Voice) Ask(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if v.Backend == nil {
		return "", fmt.Errorf("%s: no completion backend", v.Persona.Name)
	}
	if maxTokens <= 0 {
		maxTokens = v.Persona.MaxTokens
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return v.Backend.Complete(ctx, v.Persona.SystemPrompt(now()), prompt, maxTokens, v.Persona.Temperature)
}
