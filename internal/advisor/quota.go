package advisor

import (
	"sync"
	"time"
)

type usage struct {
	day   string
	count int
}

// Quota counts questions per user per local day. Counts reset when the
// calendar date in loc changes.
type Quota struct {
	limit int
	loc   *time.Location
	now   func() time.Time

	mu    sync.Mutex
	users map[string]usage
}

func NewQuota(limit int, loc *time.Location) *Quota {
	if limit <= 0 {
		limit = 5
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Quota{limit: limit, loc: loc, now: time.Now, users: make(map[string]usage)}
}

func (q *Quota) SetClock(now func() time.Time) { q.now = now }

func (q *Quota) Limit() int { return q.limit }

func (q *Quota) today() string {
	return q.now().In(q.loc).Format("2006-01-02")
}

func (q *Quota) current(user string) usage {
	u, ok := q.users[user]
	today := q.today()
	if !ok || u.day != today {
		return usage{day: today}
	}
	return u
}

// Remaining returns how many questions user may still ask today.
func (q *Quota) Remaining(user string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit - q.current(user).count
}

// Reserve takes one credit for user and returns what is left. It reports
// false, taking nothing, when the day's credits are gone.
func (q *Quota) Reserve(user string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	u := q.current(user)
	if u.count >= q.limit {
		return 0, false
	}
	u.count++
	q.users[user] = u
	return q.limit - u.count, true
}

// Release gives back a credit taken by Reserve for a question that went
// unanswered. A credit reserved before midnight is not carried over.
func (q *Quota) Release(user string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	u := q.current(user)
	if u.count == 0 {
		return
	}
	u.count--
	q.users[user] = u
}

// ResetsAt is the next local midnight.
func (q *Quota) ResetsAt() time.Time {
	y, m, d := q.now().In(q.loc).AddDate(0, 0, 1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, q.loc)
}
