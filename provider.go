package fig

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/fig/generic"
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider name")
	ErrInvalidProvider   = errors.New("invalid provider")
	ErrNoMatch           = errors.New("no provider matched the input")
	ErrUnknownProvider   = errors.New("unknown provider")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

type MatchFunc = func(string) (Source, error)

// A Provider turns URLs it recognises into a Source.
type Provider struct {
	Name  string
	Match MatchFunc
	// Lower (including negative) matches earlier.
	Priority int16
}

func (p Provider) WithName(name string) Provider {
	p.Name = name
	return p
}

func (p Provider) WithPriority(priority int16) Provider {
	p.Priority = priority
	return p
}

// A Match is the result of a Provider successfully matching a URL.
type Match struct {
	ProviderName string
	Source       Source
}

// A ProviderRegistry is an ordered collection of providers. It is safe for concurrent use.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers []*Provider
	byName    map[string]*Provider
}

// Add registers a Provider. Name and Match must be set, and Name must be unique within the registry.
func (r *ProviderRegistry) Add(p Provider) error {
	if p.Name == "" || p.Match == nil {
		return ErrInvalidProvider
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName == nil {
		r.byName = make(map[string]*Provider)
	}
	if _, ok := r.byName[p.Name]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateProvider, p.Name)
	}
	r.byName[p.Name] = &p
	r.providers = append(r.providers, &p)
	r.sortByPriority()
	return nil
}

// GetPriority gets the priority of the named Provider.
func (r *ProviderRegistry) GetPriority(name string) (int16, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byName[name]; ok {
		return p.Priority, nil
	}
	return PriorityDefault, ErrUnknownProvider
}

// List returns the names of registered providers in priority order.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name)
	}
	return names
}

// Match s against each Provider in priority order. On failure the error wraps ErrNoMatch along with each
// provider's reason.
func (r *ProviderRegistry) Match(s string) (*Match, error) {
	r.mu.RLock()
	providers := append([]*Provider(nil), r.providers...)
	r.mu.RUnlock()

	var result error = ErrNoMatch
	for _, p := range providers {
		source, err := p.Match(s)
		if source != nil && err == nil {
			return &Match{ProviderName: p.Name, Source: source}, nil
		}
		if err != nil {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", p.Name)))
		}
	}
	return nil, result
}

// MatchWith will attempt to match a string against a specific provider.
func (r *ProviderRegistry) MatchWith(name string, s string) (*Match, error) {
	r.mu.RLock()
	p, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownProvider
	}
	source, err := p.Match(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMatch, err)
	} else if source == nil {
		return nil, ErrNoMatch
	}
	return &Match{ProviderName: p.Name, Source: source}, nil
}

// MustAdd wraps Add but panics if there is an error.
func (r *ProviderRegistry) MustAdd(p Provider) {
	generic.Unwrap_(r.Add(p))
}

// SetPriority adjusts the priority of a named Provider.
func (r *ProviderRegistry) SetPriority(name string, priority int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byName[name]
	if !ok {
		return ErrUnknownProvider
	}
	p.Priority = priority
	r.sortByPriority()
	return nil
}

func (r *ProviderRegistry) sortByPriority() {
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority < r.providers[j].Priority
	})
}

// DefaultProviderRegistry is populated by importing provider packages (see package providers).
var DefaultProviderRegistry ProviderRegistry
