package responder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/brianly1003/wahub/internal/adapters/watcher"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Rule maps a keyword to a reply. Replies may use the placeholders
// {time}, {sender}, {content}, {media_type} and {filename}.
type Rule struct {
	Keyword string `yaml:"keyword"`
	Reply   string `yaml:"reply"`
}

// RuleSet is the keyword reply table.
type RuleSet struct {
	Rules         []Rule   `yaml:"rules"`
	Greetings     []string `yaml:"greetings"`
	GreetingReply string   `yaml:"greeting_reply"`
	QuestionReply string   `yaml:"question_reply"`
	MediaReply    string   `yaml:"media_reply"`
	DefaultReply  string   `yaml:"default_reply"`
}

// DefaultRuleSet returns the built-in reply table.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Rules: []Rule{
			{Keyword: "hello", Reply: "Hello! How can I help you today?"},
			{Keyword: "hi", Reply: "Hi there! What can I do for you?"},
			{Keyword: "hey", Reply: "Hey! How are you doing?"},
			{Keyword: "how are you", Reply: "I'm doing great, thank you for asking! How about you?"},
			{Keyword: "what's up", Reply: "Not much! Just here to help. What's up with you?"},
			{Keyword: "whats up", Reply: "Not much! Just here to help. What's up with you?"},
			{Keyword: "help", Reply: "I can help you with various tasks! Try asking me about the time, or just chat with me."},
			{Keyword: "time", Reply: "The current time is {time}"},
			{Keyword: "thank you", Reply: "You're welcome! Is there anything else I can help you with?"},
			{Keyword: "thanks", Reply: "You're welcome! Is there anything else I can help you with?"},
			{Keyword: "ping", Reply: "Pong! 🏓"},
		},
		Greetings:     []string{"hello", "hi", "hey", "good morning", "good afternoon"},
		GreetingReply: "Hello! Thanks for your message. I received: '{content}'",
		QuestionReply: "That's a great question! I'm here to help you find the answer.",
		MediaReply:    "Thanks for the {media_type}! I received your file: {filename}",
	}
}

// LoadRuleSet reads a YAML rule file. Empty fields fall back to the
// built-in defaults, except Rules which replaces the default table when set.
func LoadRuleSet(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rules file: %w", err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	def := DefaultRuleSet()
	if len(rs.Rules) == 0 {
		rs.Rules = def.Rules
	}
	if len(rs.Greetings) == 0 {
		rs.Greetings = def.Greetings
	}
	if rs.GreetingReply == "" {
		rs.GreetingReply = def.GreetingReply
	}
	if rs.QuestionReply == "" {
		rs.QuestionReply = def.QuestionReply
	}
	if rs.MediaReply == "" {
		rs.MediaReply = def.MediaReply
	}
	for i, r := range rs.Rules {
		rs.Rules[i].Keyword = strings.ToLower(strings.TrimSpace(r.Keyword))
	}
	return rs, nil
}

// Match returns the reply for a prompt. Media messages get the media reply.
// For text, an exact keyword match wins, then the first keyword contained in
// the message, then the greeting, question and default replies.
func (rs RuleSet) Match(p ports.Prompt, now time.Time) (string, bool) {
	if p.MediaType != "" {
		if rs.MediaReply == "" {
			return "", false
		}
		return rs.render(rs.MediaReply, p, now), true
	}

	content := strings.ToLower(strings.TrimSpace(p.Content))
	if content == "" {
		return "", false
	}

	for _, r := range rs.Rules {
		if r.Keyword != "" && content == r.Keyword {
			return rs.render(r.Reply, p, now), true
		}
	}
	for _, r := range rs.Rules {
		if r.Keyword != "" && strings.Contains(content, r.Keyword) {
			return rs.render(r.Reply, p, now), true
		}
	}
	if strings.HasSuffix(content, "?") && rs.QuestionReply != "" {
		return rs.render(rs.QuestionReply, p, now), true
	}
	for _, g := range rs.Greetings {
		if strings.Contains(content, g) && rs.GreetingReply != "" {
			return rs.render(rs.GreetingReply, p, now), true
		}
	}
	if rs.DefaultReply != "" {
		return rs.render(rs.DefaultReply, p, now), true
	}
	return "", false
}

func (rs RuleSet) render(tmpl string, p ports.Prompt, now time.Time) string {
	return strings.NewReplacer(
		"{time}", now.Format("2006-01-02 15:04:05"),
		"{sender}", p.Sender,
		"{content}", p.Content,
		"{media_type}", p.MediaType,
		"{filename}", p.Filename,
	).Replace(tmpl)
}

// RulesResponder answers from a RuleSet. When backed by a file, the file is
// reloaded on change.
type RulesResponder struct {
	path string
	now  func() time.Time

	mu      sync.RWMutex
	rules   RuleSet
	watcher *watcher.FileWatcher
}

// NewRulesResponder creates a responder. An empty path uses the built-in
// table.
func NewRulesResponder(path string) (*RulesResponder, error) {
	r := &RulesResponder{path: path, now: time.Now, rules: DefaultRuleSet()}
	if path == "" {
		return r, nil
	}
	rs, err := LoadRuleSet(path)
	if err != nil {
		return nil, err
	}
	r.rules = rs
	return r, nil
}

// Name returns "rules".
func (r *RulesResponder) Name() string {
	return ProviderRules
}

// Rules returns the active rule set.
func (r *RulesResponder) Rules() RuleSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules
}

// Respond matches the prompt against the active rules.
func (r *RulesResponder) Respond(_ context.Context, p ports.Prompt) (string, error) {
	reply, _ := r.Rules().Match(p, r.now())
	return reply, nil
}

// Reload re-reads the rules file. On error the previous rules stay active.
func (r *RulesResponder) Reload() error {
	if r.path == "" {
		return nil
	}
	rs, err := LoadRuleSet(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.rules = rs
	r.mu.Unlock()
	log.Info().Str("path", r.path).Int("rules", len(rs.Rules)).Msg("reply rules reloaded")
	return nil
}

// Watch reloads the rules whenever the file changes, until ctx ends or Close
// is called.
func (r *RulesResponder) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}
	w := watcher.NewFileWatcher([]string{r.path}, watcher.DefaultDebounce, func(string) {
		if err := r.Reload(); err != nil {
			log.Warn().Err(err).Str("path", r.path).Msg("failed to reload reply rules, keeping previous rules")
		}
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.watcher = w
	r.mu.Unlock()
	return nil
}

// Close stops watching the rules file.
func (r *RulesResponder) Close() error {
	r.mu.Lock()
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()
	if w != nil {
		return w.Stop()
	}
	return nil
}
