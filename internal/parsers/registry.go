package parsers

import (
	"strings"

	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"
)

// Registry resolves a parser from the bank tag supplied with an import. The
// set of parsers is fixed at construction; registration is not safe for
// concurrent use with Resolve.
type Registry struct {
	parsers []Parser
	logger  logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: logger.GetGlobalLogger().WithComponent("parser_registry"),
	}
}

// NewDefaultRegistry creates a registry with every built-in bank parser,
// including the GENERIC layout.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(NewBradescoParser())
	registry.Register(NewSantanderParser())
	registry.Register(NewGenericParser())
	return registry
}

// Register adds a parser to the registry. Earlier registrations take
// precedence when several parsers support the same bank tag.
func (r *Registry) Register(parser Parser) {
	r.parsers = append(r.parsers, parser)
}

// Resolve returns the first registered parser supporting the bank tag, or an
// unsupported-bank error when none does.
func (r *Registry) Resolve(bank string) (Parser, error) {
	normalized := strings.ToUpper(strings.TrimSpace(bank))

	for _, parser := range r.parsers {
		if parser.Supports(normalized) {
			return parser, nil
		}
	}

	r.logger.WithField("bank", bank).Warn("No parser registered for bank")
	return nil, errors.UnsupportedBankError(bank)
}
