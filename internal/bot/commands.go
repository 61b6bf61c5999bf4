// Package bot connects the pipeline to the chat platforms: prefix commands,
// the Oracle helper and member onboarding on Discord, a small command set on
// Telegram.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"crypto-herald/internal/advisor"
	"crypto-herald/internal/compose"
	"crypto-herald/internal/domain"
	"crypto-herald/internal/job"
	"crypto-herald/internal/pipeline"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline is what the commands drive.
type Pipeline interface {
	RunGlobalUpdate(ctx context.Context, trigger pipeline.Trigger) pipeline.CycleResult
	RunCategory(ctx context.Context, name string) (pipeline.CycleResult, error)
	RunSocialPosts(ctx context.Context, theme string) pipeline.CycleResult
	Situation(ctx context.Context) (compose.Message, bool)
	Prices(ctx context.Context) (compose.Message, bool)
	Status() pipeline.Status
}

type Advisor interface {
	Ask(ctx context.Context, userID string, isAdmin bool, question string) (advisor.Answer, error)
	Remaining(userID string, isAdmin bool) int
}

type TaskLister interface {
	Tasks() []job.TaskStatus
}

// Request is one prefix command invocation.
type Request struct {
	UserID    string
	UserName  string
	ChannelID string
	IsAdmin   bool
	Roles     []string
	Command   string
	Args      string
}

// ParseCommand splits "!news extra" into ("news", "extra"). It returns false
// when content does not start with prefix.
func ParseCommand(prefix, content string) (string, string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(content, prefix))
	if rest == "" {
		return "", "", false
	}
	name, args, _ := strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// Reply sends one message back to where the command came from.
type Reply func(msg compose.Message)

type Commands struct {
	tracer    trace.Tracer
	pipeline  Pipeline
	advisor   Advisor
	tasks     TaskLister
	composer  *compose.Composer
	prefix    string
	vipLounge string
	vipRoles  map[string]bool
	askLimit  int
	loc       *time.Location
}

type CommandsConfig struct {
	Prefix    string
	VIPLounge string
	VIPRoles  []string
	AskLimit  int
	Location  *time.Location
}

func NewCommands(tracer trace.Tracer, p Pipeline, adv Advisor, tasks TaskLister, composer *compose.Composer, cfg CommandsConfig) *Commands {
	roles := make(map[string]bool, len(cfg.VIPRoles))
	for _, r := range cfg.VIPRoles {
		roles[strings.ToLower(strings.TrimSpace(r))] = true
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	return &Commands{
		tracer:    tracer,
		pipeline:  p,
		advisor:   adv,
		tasks:     tasks,
		composer:  composer,
		prefix:    cfg.Prefix,
		vipLounge: cfg.VIPLounge,
		vipRoles:  roles,
		askLimit:  cfg.AskLimit,
		loc:       cfg.Location,
	}
}

func (c *Commands) Prefix() string { return c.prefix }

// adminOnly lists the commands reserved to administrators, mapped to the
// pipeline category they trigger when they trigger one.
var adminOnly = map[string]string{
	"testall":   "",
	"flash":     "",
	"post":      "",
	"status":    "",
	"opport":    "opportunities",
	"news":      "news",
	"sentiment": "sentiment",
	"setup":     "setup",
	"watchlist": "watchlist",
	"marche":    "market",
}

// Known reports whether name is a command this router answers.
func (c *Commands) Known(name string) bool {
	if _, ok := adminOnly[name]; ok {
		return true
	}
	return name == "prix" || name == "ask"
}

// Handle runs req and sends its replies. Unknown commands are ignored.
func (c *Commands) Handle(ctx context.Context, req Request, reply Reply) {
	if !c.Known(req.Command) {
		return
	}
	ctx, span := c.tracer.Start(ctx, "bot.command")
	defer span.End()
	span.SetAttributes(
		attribute.String("command.name", req.Command),
		attribute.String("command.user", req.UserID),
	)
	logger := log.With().Str("component", "bot").Str("command", req.Command).Str("user", req.UserName).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("command panicked")
			reply(c.composer.Notice("❌ Erreur interne, réessaie plus tard."))
		}
	}()

	if category, ok := adminOnly[req.Command]; ok {
		if !req.IsAdmin {
			reply(c.composer.Notice("❌ Commande réservée aux administrateurs."))
			return
		}
		logger.Info().Msg("admin command")
		switch req.Command {
		case "testall":
			reply(c.composer.Notice("⏳ Mise à jour globale en cours..."))
			reply(c.cycleNotice("Mise à jour globale", c.pipeline.RunGlobalUpdate(ctx, pipeline.TriggerManual)))
		case "flash":
			if msg, ok := c.pipeline.Situation(ctx); ok {
				reply(msg)
			} else {
				reply(c.composer.Notice("❌ Données marché indisponibles."))
			}
		case "post":
			theme := req.Args
			if theme == "" {
				theme = "auto"
			}
			reply(c.composer.Notice("✍️ Génération des posts en cours..."))
			reply(c.cycleNotice("Posts réseaux sociaux", c.pipeline.RunSocialPosts(ctx, theme)))
		case "status":
			reply(c.statusMessage())
		default:
			res, err := c.pipeline.RunCategory(ctx, category)
			if err != nil {
				reply(c.composer.Notice("❌ " + err.Error()))
				return
			}
			reply(c.cycleNotice(strings.ToUpper(category[:1])+category[1:], res))
		}
		return
	}

	switch req.Command {
	case "prix":
		if msg, ok := c.pipeline.Prices(ctx); ok {
			reply(msg)
		} else {
			reply(c.composer.Notice("❌ Prix indisponibles pour le moment."))
		}
	case "ask":
		c.ask(ctx, req, reply)
	}
}

func (c *Commands) cycleNotice(label string, res pipeline.CycleResult) compose.Message {
	text := fmt.Sprintf("✅ %s terminé : %d publié(s), %d ignoré(s).", label, res.Published, res.Skipped)
	if len(res.Errors) > 0 {
		text = fmt.Sprintf("⚠️ %s terminé avec %d erreur(s) : %d publié(s).\n%s",
			label, len(res.Errors), res.Published, strings.Join(res.Errors, "\n"))
	}
	return c.composer.Notice(text)
}

func (c *Commands) isVIP(roles []string) bool {
	for _, r := range roles {
		if c.vipRoles[strings.ToLower(r)] {
			return true
		}
	}
	return false
}

func (c *Commands) ask(ctx context.Context, req Request, reply Reply) {
	if c.vipLounge != "" && req.ChannelID != c.vipLounge {
		reply(c.composer.Notice("❌ Cette commande est réservée au salon **#vip-lounge** !"))
		return
	}
	if !req.IsAdmin && !c.isVIP(req.Roles) {
		reply(c.composer.Notice("❌ Cette commande est réservée aux membres **VIP** ! 👑"))
		return
	}
	if c.advisor == nil {
		reply(c.composer.Notice("❌ Service IA indisponible."))
		return
	}

	if req.Args == "" {
		credits := "👑 **Admin :** questions illimitées"
		if !req.IsAdmin {
			credits = fmt.Sprintf("📊 **Crédits restants aujourd'hui :** %d/%d", c.advisor.Remaining(req.UserID, false), c.askLimit)
		}
		msg := c.composer.Notice("Pose ta question à notre IA expert crypto !\n\n" + credits)
		msg.Title = "🤖 Comment utiliser " + c.prefix + "ask"
		msg.AddField("📝 Usage", "`"+c.prefix+"ask <ta question>`", false)
		msg.AddField("💡 Exemples", "• `"+c.prefix+"ask que penses-tu du BTC actuellement ?`\n• `"+c.prefix+"ask quel est le prix de l'or ?`", false)
		reply(msg)
		return
	}

	ans, err := c.advisor.Ask(ctx, req.UserID, req.IsAdmin, req.Args)
	switch {
	case errors.Is(err, advisor.ErrQuotaExceeded):
		msg := c.composer.Notice(fmt.Sprintf("Tu as utilisé tes **%d questions** aujourd'hui.\n\nReviens demain ! 🌅", c.askLimit))
		msg.Title = "⏰ Limite atteinte"
		msg.Color = compose.ColorAmber
		msg.Footer = "💡 La limite se réinitialise à minuit (heure de Paris)"
		reply(msg)
		return
	case err != nil:
		reply(c.composer.Notice("❌ Impossible de contacter l'IA. Réessaie dans quelques instants."))
		return
	}

	msg := c.composer.Answer(req.Args, ans.Text, ans.Remaining)
	msg.AddField("📊 Marché actuel", ans.Market, false)
	if req.IsAdmin {
		msg.Footer = "Question de " + req.UserName + " • 👑 Admin • NFA-DYOR"
	} else {
		msg.Footer = fmt.Sprintf("Question de %s • 📊 %d/%d crédits restants • NFA-DYOR", req.UserName, ans.Remaining, c.askLimit)
	}
	reply(msg)
}

func (c *Commands) statusMessage() compose.Message {
	st := c.pipeline.Status()
	startup := "⏳ en attente"
	if st.StartupDone {
		startup = "✅ effectué"
	}
	fields := []compose.Field{
		{Name: "Persona", Value: st.Persona, Inline: true},
		{Name: "Démarrage", Value: startup, Inline: true},
	}

	var pools []string
	for _, name := range []domain.Pool{domain.PoolDigest, domain.PoolAlert} {
		if ps, ok := st.Ledger[name]; ok {
			pools = append(pools, fmt.Sprintf("%s : %d ids, %d évictions", name, ps.Size, ps.Evictions))
		}
	}
	fields = append(fields, compose.Field{Name: "📒 Ledger", Value: strings.Join(pools, "\n")})

	if c.tasks != nil {
		var lines []string
		for _, t := range c.tasks.Tasks() {
			line := fmt.Sprintf("%s : %s, %d runs, %d échecs", t.Name, t.State, t.Runs, t.Failures)
			if !t.Next.IsZero() {
				line += ", prochain " + t.Next.In(c.loc).Format("02/01 15:04")
			}
			lines = append(lines, line)
		}
		fields = append(fields, compose.Field{Name: "⏰ Tâches", Value: strings.Join(lines, "\n")})
	}

	cycles := append([]pipeline.CycleResult(nil), st.Cycles...)
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Finished.After(cycles[j].Finished) })
	var lines []string
	for _, r := range cycles {
		lines = append(lines, fmt.Sprintf("%s %s : %d publiés, %d erreurs",
			r.Finished.In(c.loc).Format("15:04"), r.Kind, r.Published, len(r.Errors)))
	}
	fields = append(fields, compose.Field{Name: "🔁 Derniers cycles", Value: strings.Join(lines, "\n")})

	return c.composer.Status("📊 Statut du bot", fields)
}
