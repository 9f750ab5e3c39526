package wizard

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrFormNotFound = errors.New("form not found")
	ErrFormExists   = errors.New("a form with this name already exists")
)

// Form is a registered wizard configuration.
type Form struct {
	Name    string
	Title   string
	Steps   []Step
	Gateway Gateway
}

// Registry holds the forms that sessions can be opened on.
type Registry struct {
	mu    sync.RWMutex
	forms map[string]Form
}

func NewRegistry() *Registry {
	return &Registry{forms: make(map[string]Form)}
}

func (r *Registry) Register(f Form) error {
	if f.Gateway == nil {
		return errors.Wrap(ErrNoGateway, f.Name)
	}
	if err := CheckSteps(f.Steps); err != nil {
		return errors.WithMessage(err, f.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.forms[f.Name]; ok {
		return errors.Wrap(ErrFormExists, f.Name)
	}
	f.Steps = cloneSteps(f.Steps)
	r.forms[f.Name] = f
	return nil
}

// RegisterDefinition compiles def and registers it with gateway.
func (r *Registry) RegisterDefinition(def *Definition, gateway Gateway) error {
	steps, err := def.Compile()
	if err != nil {
		return err
	}
	return r.Register(Form{Name: def.Name, Title: def.Title, Steps: steps, Gateway: gateway})
}

func (r *Registry) Get(name string) (Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forms[name]
	if !ok {
		return Form{}, errors.Wrap(ErrFormNotFound, name)
	}
	return f, nil
}

// List returns the registered forms sorted by name.
func (r *Registry) List() []Form {
	r.mu.RLock()
	defer r.mu.RUnlock()
	forms := make([]Form, 0, len(r.forms))
	for _, f := range r.forms {
		forms = append(forms, f)
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].Name < forms[j].Name })
	return forms
}

// NewWizard builds a fresh wizard for the named form.
func (r *Registry) NewWizard(name string, opts ...Option) (*Wizard, error) {
	f, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithName(f.Name)}, opts...)
	return New(f.Gateway, f.Steps, opts...)
}
