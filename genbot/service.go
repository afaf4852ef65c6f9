package genbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alovak/cardgen-bot/internal/access"
	"github.com/alovak/cardgen-bot/internal/batch"
	"github.com/alovak/cardgen-bot/internal/binlookup"
	"github.com/alovak/cardgen-bot/internal/cardgen"
)

var (
	ErrCountOutOfRange = errors.New("count out of range")
	ErrTooManyItems    = errors.New("too many items")
	ErrNoCandidates    = errors.New("no card candidates found")
)

// Resolver returns metadata for a prefix. It never fails.
type Resolver interface {
	Lookup(ctx context.Context, prefix string) binlookup.Record
}

// Generation is the payload of a successful /gen.
type Generation struct {
	Prefix string
	Cards  []cardgen.SyntheticCard
	Record binlookup.Record
}

// Service holds the bot's business operations independent of the chat transport.
type Service struct {
	policy    *access.Policy
	generator *cardgen.Generator
	resolver  Resolver
	checker   batch.Checker
	config    *Config
}

func NewService(policy *access.Policy, generator *cardgen.Generator, resolver Resolver, checker batch.Checker, config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		policy:    policy,
		generator: generator,
		resolver:  resolver,
		checker:   checker,
		config:    config,
	}
}

// ParsePrefix strips non-digit characters from raw and validates the result
// as a generation prefix.
func ParsePrefix(raw string) (string, error) {
	prefix := digitsOnly(raw)
	if err := cardgen.ValidatePrefix(prefix); err != nil {
		return "", err
	}
	return prefix, nil
}

// Generate synthesizes count cards for rawPrefix and resolves their metadata.
// Input is validated before the requester is evaluated, so a malformed
// request never changes the access list; validation errors come back with
// the zero Decision. count <= 0 means the configured default. When the
// decision is not permitted, the returned Generation is nil.
func (s *Service) Generate(ctx context.Context, r access.Requester, rawPrefix string, count int) (access.Decision, *Generation, error) {
	prefix, err := ParsePrefix(rawPrefix)
	if err != nil {
		return 0, nil, err
	}
	if count <= 0 {
		count = s.config.GenDefaultCount
	}
	if count > s.config.GenMaxCount {
		return 0, nil, fmt.Errorf("%w: max %d", ErrCountOutOfRange, s.config.GenMaxCount)
	}

	decision, err := s.policy.Evaluate(ctx, r)
	if !decision.Permitted() {
		return decision, nil, err
	}

	cards, err := s.generator.Batch(prefix, count)
	if err != nil {
		return decision, nil, fmt.Errorf("generating cards: %w", err)
	}

	return decision, &Generation{
		Prefix: prefix,
		Cards:  cards,
		Record: s.resolver.Lookup(ctx, prefix),
	}, nil
}

// Approve moves id to approved. Callers other than the admin are ignored.
func (s *Service) Approve(ctx context.Context, r access.Requester, id int64) (access.AdminOutcome, error) {
	return s.adminMutation(r, func() error { return s.policy.Store().Approve(ctx, id) })
}

// Ban moves id to banned. Callers other than the admin are ignored.
func (s *Service) Ban(ctx context.Context, r access.Requester, id int64) (access.AdminOutcome, error) {
	return s.adminMutation(r, func() error { return s.policy.Store().Ban(ctx, id) })
}

// Remove drops id from every list. Callers other than the admin are ignored.
func (s *Service) Remove(ctx context.Context, r access.Requester, id int64) (access.AdminOutcome, error) {
	return s.adminMutation(r, func() error { return s.policy.Store().Remove(ctx, id) })
}

func (s *Service) adminMutation(r access.Requester, fn func() error) (access.AdminOutcome, error) {
	outcome := s.policy.AuthorizeAdmin(r)
	if outcome != access.AdminGranted {
		return outcome, nil
	}
	return outcome, fn()
}

// Users returns the access list for the admin.
func (s *Service) Users(r access.Requester) (access.AdminOutcome, access.Document) {
	outcome := s.policy.AuthorizeAdmin(r)
	if outcome != access.AdminGranted {
		return outcome, access.Document{}
	}
	return outcome, s.policy.Store().Snapshot()
}

// CheckOne checks a single number|MM|YYYY|cvv line. A malformed line is
// rejected with ErrNoCandidates before the requester is evaluated.
func (s *Service) CheckOne(ctx context.Context, r access.Requester, line string) (access.Decision, batch.Report, error) {
	c, err := batch.ParseCandidate(line)
	if err != nil {
		return 0, batch.Report{}, fmt.Errorf("%w: %v", ErrNoCandidates, err)
	}
	decision, err := s.policy.Evaluate(ctx, r)
	if !decision.Permitted() {
		return decision, batch.Report{}, err
	}
	return decision, batch.Run(ctx, s.checker, []string{c.String()}), nil
}

// CheckBatch extracts every card line from text and checks them in order.
// Empty or oversized input is rejected before the requester is evaluated.
func (s *Service) CheckBatch(ctx context.Context, r access.Requester, text string) (access.Decision, batch.Report, error) {
	items := batch.ExtractCandidates(text)
	if len(items) == 0 {
		return 0, batch.Report{}, ErrNoCandidates
	}
	if len(items) > s.config.BatchMaxItems {
		return 0, batch.Report{}, fmt.Errorf("%w: max %d", ErrTooManyItems, s.config.BatchMaxItems)
	}
	decision, err := s.policy.Evaluate(ctx, r)
	if !decision.Permitted() {
		return decision, batch.Report{}, err
	}
	return decision, batch.Run(ctx, s.checker, items), nil
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// AuthorizeAdmin gates privileged commands.
func (s *Service) AuthorizeAdmin(r access.Requester) access.AdminOutcome {
	return s.policy.AuthorizeAdmin(r)
}

// Admin returns the configured operator.
func (s *Service) Admin() access.Admin {
	return s.policy.Admin()
}
