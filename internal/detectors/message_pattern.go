package detectors

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
)

const (
	MaxWindowMessages = 10
	repeatThreshold   = 3
)

type PatternKind string

const (
	PatternNone             PatternKind = ""
	PatternDuplicateContent PatternKind = "duplicate content"
	PatternMassMentions     PatternKind = "mass mentions"
	PatternRepeatedLink     PatternKind = "repeated link"
)

var urlRegex = regexp.MustCompile(`(?i)(?:(?:https?|ftp):\/\/)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)

// ExtractURLs returns the distinct URLs in text, lowercased, in order of appearance.
func ExtractURLs(text string) []string {
	found := urlRegex.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}
	out := make([]string, 0, len(found))
	seen := make(map[string]struct{}, len(found))
	for _, u := range found {
		u = strings.ToLower(u)
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func Summarize(msg models.Message) models.MessageSummary {
	return models.MessageSummary{
		Content:      msg.Content,
		MentionCount: msg.UserMentions + msg.RoleMentions,
		URLs:         ExtractURLs(msg.Content),
		At:           msg.Timestamp,
	}
}

// MessageTracker holds the last few messages of each guild member. Idle
// windows expire and the least recently active ones are evicted at capacity.
type MessageTracker struct {
	mu      sync.Mutex
	windows *expirable.LRU[string, []models.MessageSummary]
}

func NewMessageTracker(capacity int, ttl time.Duration) *MessageTracker {
	return &MessageTracker{
		windows: expirable.NewLRU[string, []models.MessageSummary](capacity, nil, ttl),
	}
}

func windowKey(guildID, userID string) string {
	return guildID + "/" + userID
}

// Observe appends summary to the member's window and returns a copy of it.
func (t *MessageTracker) Observe(guildID, userID string, summary models.MessageSummary) []models.MessageSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := windowKey(guildID, userID)
	prev, _ := t.windows.Get(key)

	next := make([]models.MessageSummary, 0, MaxWindowMessages)
	if over := len(prev) + 1 - MaxWindowMessages; over > 0 {
		prev = prev[over:]
	}
	next = append(next, prev...)
	next = append(next, summary)
	t.windows.Add(key, next)

	out := make([]models.MessageSummary, len(next))
	copy(out, next)
	return out
}

func (t *MessageTracker) Window(guildID, userID string) []models.MessageSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, _ := t.windows.Get(windowKey(guildID, userID))
	out := make([]models.MessageSummary, len(w))
	copy(out, w)
	return out
}

func (t *MessageTracker) Clear(guildID, userID string) {
	t.mu.Lock()
	t.windows.Remove(windowKey(guildID, userID))
	t.mu.Unlock()
}

func (t *MessageTracker) Len() int {
	return t.windows.Len()
}

// DetectPattern returns the first abuse pattern the window matches.
func DetectPattern(window []models.MessageSummary, settings *config.RaidProtectionSettings) PatternKind {
	contents := make(map[string]int, len(window))
	links := make(map[string]int)
	mentions := 0

	for _, m := range window {
		if m.Content != "" {
			contents[m.Content]++
			if contents[m.Content] >= repeatThreshold {
				return PatternDuplicateContent
			}
		}
		mentions += m.MentionCount
		for _, u := range m.URLs {
			links[u]++
		}
	}

	if settings.MentionThreshold > 0 && mentions >= settings.MentionThreshold {
		return PatternMassMentions
	}
	for _, n := range links {
		if n >= repeatThreshold {
			return PatternRepeatedLink
		}
	}
	return PatternNone
}

func IsSuspiciousPattern(window []models.MessageSummary, settings *config.RaidProtectionSettings) bool {
	return DetectPattern(window, settings) != PatternNone
}
