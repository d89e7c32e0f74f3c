package conversation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/EgorLis/kingdombot/internal/kingdom"
)

// DefaultTimeout — сколько ждём каждый ответ.
const DefaultTimeout = 60 * time.Second

type State int

const (
	AwaitingCountry State = iota
	AwaitingLatest
	AwaitingTarget
	AwaitingElapsed
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingCountry:
		return "awaiting_country"
	case AwaitingLatest:
		return "awaiting_latest"
	case AwaitingTarget:
		return "awaiting_target"
	case AwaitingElapsed:
		return "awaiting_elapsed"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Terminal() bool { return s == Done || s == Aborted }

// Key — разговор привязан к пользователю и каналу.
type Key struct {
	UserID    string
	ChannelID string
}

// Reply — один исходящий ответ: либо текст, либо итог.
type Reply struct {
	Text    string
	Summary *Summary
	// Ephemeral — показать только автору, если платформа это умеет.
	Ephemeral bool
}

// Resolver превращает название страны в зону.
type Resolver interface {
	ResolveLocation(country string) (*time.Location, error)
}

// Session — один разговор /kingdom. Не потокобезопасен, синхронизация на вызывающем.
type Session struct {
	ID  string
	Key Key

	resolver Resolver
	timeout  time.Duration

	state    State
	deadline time.Time
	err      error

	loc     *time.Location
	latest  int
	target  int
	elapsed kingdom.Elapsed
	result  *kingdom.Result
}

func New(id string, key Key, resolver Resolver, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Session{
		ID:       id,
		Key:      key,
		resolver: resolver,
		timeout:  timeout,
		state:    AwaitingCountry,
	}
}

func (s *Session) State() State            { return s.state }
func (s *Session) Deadline() time.Time     { return s.deadline }
func (s *Session) Err() error              { return s.err }
func (s *Session) Result() *kingdom.Result { return s.result }

// Start задаёт первый вопрос и взводит таймер.
func (s *Session) Start(now time.Time) Reply {
	return s.prompt(PromptCountry, now)
}

// Handle обрабатывает очередное сообщение пользователя.
// Ответ после дедлайна — это таймаут, а не ответ.
func (s *Session) Handle(text string, now time.Time) Reply {
	if s.state.Terminal() {
		return Reply{}
	}
	if s.Expired(now) {
		return s.abort(kingdom.NewError(kingdom.CodeTimeout, "reply after deadline"))
	}

	switch s.state {
	case AwaitingCountry:
		loc, err := s.resolver.ResolveLocation(text)
		if err != nil {
			return s.abort(err)
		}
		s.loc = loc
		s.state = AwaitingLatest
		return s.prompt(PromptLatest, now)

	case AwaitingLatest:
		n, err := parseKingdom(text)
		if err != nil {
			return s.abort(err)
		}
		s.latest = n
		s.state = AwaitingTarget
		return s.prompt(PromptTarget, now)

	case AwaitingTarget:
		n, err := parseKingdom(text)
		if err != nil {
			return s.abort(err)
		}
		s.target = n
		if s.target <= s.latest {
			return s.abort(kingdom.NewError(kingdom.CodeInvalidRange,
				fmt.Sprintf("kingdom %d is not after kingdom %d", s.target, s.latest)))
		}
		s.state = AwaitingElapsed
		return s.prompt(PromptElapsed, now)

	case AwaitingElapsed:
		e, err := kingdom.ParseElapsed(text)
		if err != nil {
			return s.abort(err)
		}
		s.elapsed = e
		res, err := kingdom.Predict(kingdom.Request{
			Location:      s.loc,
			LatestKingdom: s.latest,
			TargetKingdom: s.target,
			Elapsed:       e,
		}, now)
		if err != nil {
			return s.abort(err)
		}
		s.result = &res
		s.state = Done
		s.deadline = time.Time{}
		return Reply{Summary: NewSummary(res)}
	}
	return Reply{}
}

// Expired — дедлайн текущего ожидания прошёл.
func (s *Session) Expired(now time.Time) bool {
	return !s.state.Terminal() && !s.deadline.IsZero() && !now.Before(s.deadline)
}

// Expire прерывает разговор по таймауту; ok=false если ещё рано или он уже закончен.
func (s *Session) Expire(now time.Time) (Reply, bool) {
	if !s.Expired(now) {
		return Reply{}, false
	}
	return s.abort(kingdom.NewError(kingdom.CodeTimeout, "no reply within timeout")), true
}

func (s *Session) prompt(text string, now time.Time) Reply {
	s.deadline = now.Add(s.timeout)
	return Reply{Text: text}
}

func (s *Session) abort(err error) Reply {
	s.state = Aborted
	s.err = err
	s.deadline = time.Time{}
	return Reply{Text: rejection(err, s.target, s.latest)}
}

// parseKingdom — положительное целое.
func parseKingdom(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, kingdom.WrapError(err, kingdom.CodeInvalidNumber, fmt.Sprintf("invalid kingdom number %q", text))
	}
	if n <= 0 {
		return 0, kingdom.NewError(kingdom.CodeInvalidNumber, fmt.Sprintf("kingdom number must be positive, got %d", n))
	}
	return n, nil
}
