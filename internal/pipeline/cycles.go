package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"crypto-herald/internal/compose"
	"crypto-herald/internal/domain"
	"crypto-herald/internal/narrative"
	"crypto-herald/internal/snapshot"
	"crypto-herald/internal/urgency"

	"github.com/rs/zerolog"
)

const reportParts = snapshot.PartPrices | snapshot.PartGlobal | snapshot.PartSentiment |
	snapshot.PartTrending | snapshot.PartMovers | snapshot.PartDerivatives |
	snapshot.PartSocial | snapshot.PartYields | snapshot.PartNews

// RunGlobalUpdate posts the full round: solo channels, VIP reports, a forced
// news digest and the opportunities report. Fear & greed posts only go out
// in the morning run and on startup or manual runs.
func (p *Pipeline) RunGlobalUpdate(ctx context.Context, trigger Trigger) CycleResult {
	ctx, span, res, logger := p.begin(ctx, KindGlobalUpdate, trigger)

	snap := p.fetcher.Fetch(ctx, reportParts)
	if snap.Empty() {
		res.fail("no market data")
		return p.finish(span, res, logger)
	}
	morning := p.isMorning(trigger)

	// solo
	p.step(res, "solo_prices", func() {
		msg, ok := p.composer.Prices(snap)
		p.emit(ctx, res, domain.DestSoloPrices, msg, ok)
	})
	if morning {
		p.step(res, "solo_fear_greed", func() {
			msg, ok := p.composer.FearGreed(snap.Sentiment, "")
			p.emit(ctx, res, domain.DestSoloFearGreed, msg, ok)
		})
	}
	p.step(res, "solo_movers", func() {
		msg, ok := p.composer.Movers(snap)
		p.emit(ctx, res, domain.DestSoloAlerts, msg, ok)
	})

	// vip
	if morning {
		p.step(res, "vip_fear_greed", func() { p.report(ctx, res, compose.KindFearGreed, snap) })
	}
	for _, kind := range []string{compose.KindSetup, compose.KindMarket, compose.KindWatchlist, compose.KindSentiment} {
		p.step(res, "vip_"+kind, func() { p.report(ctx, res, kind, snap) })
	}

	p.step(res, "news_digest", func() { p.digest(ctx, res, logger, snap.News, true, p.cfg.DigestBatch) })
	p.step(res, "opportunities", func() { p.report(ctx, res, compose.KindOpportunities, snap) })

	return p.finish(span, res, logger)
}

var reportDest = map[string]domain.Destination{
	compose.KindFearGreed:     domain.DestFearGreed,
	compose.KindSetup:         domain.DestSetup,
	compose.KindMarket:        domain.DestMarket,
	compose.KindWatchlist:     domain.DestWatchlist,
	compose.KindSentiment:     domain.DestSentiment,
	compose.KindOpportunities: domain.DestOpportunities,
}

// report renders one narrated VIP report. The narrative is optional: without
// it the data-only message still goes out.
func (p *Pipeline) report(ctx context.Context, res *CycleResult, kind string, snap *domain.MarketSnapshot) {
	text := p.narrator.Generate(ctx, kind, snap)

	var (
		msg compose.Message
		ok  bool
	)
	switch kind {
	case compose.KindFearGreed:
		msg, ok = p.composer.FearGreed(snap.Sentiment, text)
		if ok && snap.Liquidations != nil && snap.Liquidations.TotalUSD > 0 {
			l := snap.Liquidations
			msg.AddField("💥 Liquidations 24h", fmt.Sprintf("Total: **%s**\n🟢 Longs: %s | 🔴 Shorts: %s",
				compose.FormatLargeUSD(l.TotalUSD), compose.FormatLargeUSD(l.LongUSD), compose.FormatLargeUSD(l.ShortUSD)), false)
		}
	case compose.KindSetup:
		msg, ok = p.composer.Setup(snap, text)
	case compose.KindMarket:
		msg, ok = p.composer.Market(snap, text)
	case compose.KindWatchlist:
		msg, ok = p.composer.Watchlist(snap, text)
	case compose.KindSentiment:
		msg, ok = p.composer.SentimentReport(snap, text)
	case compose.KindOpportunities:
		msg, ok = p.composer.Opportunities(snap, text)
	}
	p.emit(ctx, res, reportDest[kind], msg, ok)
}

// RunNewsCheck sends flash alerts for unseen urgent headlines, then at most
// one digest item if the digest pool is past its minimum delay.
func (p *Pipeline) RunNewsCheck(ctx context.Context) CycleResult {
	ctx, span, res, logger := p.begin(ctx, KindNewsCheck, TriggerScheduled)

	snap := p.fetcher.Fetch(ctx, snapshot.PartNews)
	if len(snap.News) == 0 {
		res.fail("no news")
		return p.finish(span, res, logger)
	}
	p.step(res, "flash", func() { p.flashes(ctx, res, logger, snap.News) })
	p.step(res, "digest", func() { p.digest(ctx, res, logger, snap.News, false, 1) })

	return p.finish(span, res, logger)
}

// RunFlashCheck only scans for urgent headlines.
func (p *Pipeline) RunFlashCheck(ctx context.Context, trigger Trigger) CycleResult {
	ctx, span, res, logger := p.begin(ctx, KindNewsCheck, trigger)

	snap := p.fetcher.Fetch(ctx, snapshot.PartNews)
	if len(snap.News) == 0 {
		res.fail("no news")
		return p.finish(span, res, logger)
	}
	p.step(res, "flash", func() { p.flashes(ctx, res, logger, snap.News) })
	return p.finish(span, res, logger)
}

// RunNewsDigest posts up to max unseen headlines. Unless forced it honours
// the digest pool delay and stops after the first delivery.
func (p *Pipeline) RunNewsDigest(ctx context.Context, force bool, max int) CycleResult {
	trigger := TriggerScheduled
	if force {
		trigger = TriggerManual
	}
	ctx, span, res, logger := p.begin(ctx, KindNewsDigest, trigger)

	snap := p.fetcher.Fetch(ctx, snapshot.PartNews)
	if len(snap.News) == 0 {
		res.fail("no news")
		return p.finish(span, res, logger)
	}
	p.step(res, "digest", func() { p.digest(ctx, res, logger, snap.News, force, max) })
	return p.finish(span, res, logger)
}

func (p *Pipeline) flashes(ctx context.Context, res *CycleResult, logger zerolog.Logger, news []domain.NewsItem) {
	p.news.Lock()
	defer p.news.Unlock()

	if len(news) > p.cfg.FlashScanLimit {
		news = news[:p.cfg.FlashScanLimit]
	}
	for _, item := range news {
		if item.ID == "" {
			continue
		}
		if p.ledger.HasBeenSent(domain.PoolAlert, item.ID) {
			p.metrics.Suppressed(string(domain.PoolAlert), "seen")
			continue
		}
		cls := p.classifier.Classify(item)
		if cls.Urgency != domain.UrgencyUrgent {
			continue
		}
		analysis := p.narrator.Analyze(ctx, item)
		msg := p.composer.Flash(item, cls, analysis)
		if p.emit(ctx, res, domain.DestFlashNews, msg, true) {
			p.ledger.MarkSent(domain.PoolAlert, item.ID)
			logger.Info().Str("news_id", item.ID).Str("category", string(cls.Category)).Msg("flash alert sent")
		}
	}
}

func (p *Pipeline) digest(ctx context.Context, res *CycleResult, logger zerolog.Logger, news []domain.NewsItem, force bool, max int) int {
	if max <= 0 {
		max = 1
	}
	p.news.Lock()
	defer p.news.Unlock()

	if !force && !p.ledger.ReadyForNext(domain.PoolDigest) {
		res.Skipped++
		p.metrics.Suppressed(string(domain.PoolDigest), "delay")
		logger.Debug().Time("next", p.ledger.NextReady(domain.PoolDigest)).Msg("digest delayed")
		return 0
	}

	sent := 0
	for _, item := range news {
		if sent >= max {
			break
		}
		if item.ID == "" {
			continue
		}
		if p.ledger.HasBeenSent(domain.PoolDigest, item.ID) {
			p.metrics.Suppressed(string(domain.PoolDigest), "seen")
			continue
		}
		cls := p.classifier.Classify(item)
		summary := p.narrator.Summarize(ctx, item)
		msg := p.composer.News(item, cls, summary)
		if !p.emit(ctx, res, domain.DestNews, msg, true) {
			continue
		}
		p.ledger.MarkSent(domain.PoolDigest, item.ID)
		p.ledger.RecordPublish(domain.PoolDigest)
		sent++
		if !force {
			break
		}
	}
	return sent
}

// RunPriceCheck compares the tracked metrics with the previous check and
// posts one alert per metric that moved past its threshold.
func (p *Pipeline) RunPriceCheck(ctx context.Context) CycleResult {
	ctx, span, res, logger := p.begin(ctx, KindPriceCheck, TriggerScheduled)

	snap := p.fetcher.Fetch(ctx, snapshot.PartPrices|snapshot.PartGlobal|snapshot.PartSentiment)
	obs := urgency.ObservationFromSnapshot(snap)
	if len(obs) == 0 {
		res.fail("no tracked metrics")
		return p.finish(span, res, logger)
	}
	for _, alert := range p.deltas.Observe(obs) {
		p.step(res, "delta_"+string(alert.Metric), func() {
			p.emit(ctx, res, domain.DestFlashNews, p.composer.DeltaAlert(alert), true)
		})
	}
	return p.finish(span, res, logger)
}

// RunOpportunitiesCheck posts the opportunities report. Unless forced it
// only does so in extreme sentiment or after a large market cap move.
func (p *Pipeline) RunOpportunitiesCheck(ctx context.Context, force bool) CycleResult {
	trigger := TriggerScheduled
	if force {
		trigger = TriggerManual
	}
	ctx, span, res, logger := p.begin(ctx, KindOpportunities, trigger)

	snap := p.fetcher.Fetch(ctx, reportParts&^snapshot.PartNews)
	if !force {
		if reason, ok := p.opportunityCondition(snap); !ok {
			res.Skipped++
			logger.Debug().Str("reason", reason).Msg("no special conditions")
			return p.finish(span, res, logger)
		}
	}
	p.step(res, "opportunities", func() { p.report(ctx, res, compose.KindOpportunities, snap) })
	return p.finish(span, res, logger)
}

func (p *Pipeline) opportunityCondition(s *domain.MarketSnapshot) (string, bool) {
	if s.Sentiment == nil || s.Global == nil {
		return "sentiment or global stats unavailable", false
	}
	fg := float64(s.Sentiment.Value)
	switch {
	case fg < p.cfg.OpportunityFearBelow:
		return "extreme fear", true
	case fg > p.cfg.OpportunityGreedOver:
		return "extreme greed", true
	case math.Abs(s.Global.MarketCapChange24h) > p.cfg.OpportunityMarketMove:
		return "market cap move", true
	}
	return "calm market", false
}

// RunSocialPosts drafts social media posts for the admins.
func (p *Pipeline) RunSocialPosts(ctx context.Context, theme string) CycleResult {
	ctx, span, res, logger := p.begin(ctx, KindSocialPosts, TriggerManual)

	snap := p.fetcher.Fetch(ctx, snapshot.PartPrices|snapshot.PartSentiment)
	draft := p.narrator.SocialPosts(ctx, theme, snap)
	posts := narrative.SplitSocialPosts(draft)
	if len(posts) == 0 {
		res.fail("social posts unavailable")
		return p.finish(span, res, logger)
	}
	for _, post := range posts {
		p.emit(ctx, res, domain.DestAdminSocial, p.composer.SocialPost(post.Platform, post.Text), true)
	}
	return p.finish(span, res, logger)
}

// Categories lists the names accepted by RunCategory.
func Categories() []string {
	names := make([]string, 0, len(categoryParts))
	for name := range categoryParts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var categoryParts = map[string]snapshot.Part{
	"news":          snapshot.PartNews,
	"flash":         snapshot.PartNews,
	"opportunities": 0,
	"social":        0,
	"fear_greed":    snapshot.PartSentiment | snapshot.PartDerivatives,
	"sentiment":     snapshot.PartSentiment | snapshot.PartNews | snapshot.PartSocial | snapshot.PartDerivatives,
	"setup":         snapshot.PartPrices | snapshot.PartGlobal | snapshot.PartMovers | snapshot.PartDerivatives,
	"market":        snapshot.PartGlobal | snapshot.PartMovers | snapshot.PartDerivatives,
	"watchlist":     snapshot.PartMovers | snapshot.PartTrending | snapshot.PartSocial,
	"prices":        snapshot.PartPrices | snapshot.PartMovers,
}

// RunCategory is the manual trigger for a single category.
func (p *Pipeline) RunCategory(ctx context.Context, name string) (CycleResult, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	parts, known := categoryParts[name]
	if !known {
		return CycleResult{}, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	switch name {
	case "news":
		return p.RunNewsDigest(ctx, true, p.cfg.DigestBatch), nil
	case "flash":
		return p.RunFlashCheck(ctx, TriggerManual), nil
	case "opportunities":
		return p.RunOpportunitiesCheck(ctx, true), nil
	case "social":
		return p.RunSocialPosts(ctx, "auto"), nil
	}

	ctx, span, res, logger := p.begin(ctx, KindCategory+":"+name, TriggerManual)
	snap := p.fetcher.Fetch(ctx, parts)
	p.step(res, name, func() {
		switch name {
		case "prices":
			msg, ok := p.composer.Prices(snap)
			p.emit(ctx, res, domain.DestSoloPrices, msg, ok)
			msg, ok = p.composer.Movers(snap)
			p.emit(ctx, res, domain.DestSoloAlerts, msg, ok)
		default:
			p.report(ctx, res, name, snap)
		}
	})
	return p.finish(span, res, logger), nil
}

// Situation builds the quick status card without publishing it.
func (p *Pipeline) Situation(ctx context.Context) (compose.Message, bool) {
	snap := p.fetcher.Fetch(ctx, snapshot.PartPrices|snapshot.PartSentiment)
	return p.composer.Situation(snap, p.narrator.Situation(ctx, snap))
}

// Prices builds the public price card without publishing it.
func (p *Pipeline) Prices(ctx context.Context) (compose.Message, bool) {
	return p.composer.Prices(p.fetcher.Fetch(ctx, snapshot.PartPrices))
}

// Bootstrap runs the global update once per process. Later calls, such as
// after a reconnect, return false without doing anything.
func (p *Pipeline) Bootstrap(ctx context.Context) (CycleResult, bool) {
	if !p.startupDone.CompareAndSwap(false, true) {
		return CycleResult{}, false
	}
	return p.RunGlobalUpdate(ctx, TriggerStartup), true
}
