package dispatch

import (
	"log"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// FirstNameFallback is rendered wherever {{first_name}} appears for a
// contact with no first name on file.
const FirstNameFallback = "there"

// Personalizer renders campaign content as Liquid templates with per-contact
// bindings. Parsed templates are cached by source. Operator-authored bodies
// are not guaranteed to be valid Liquid, so a parse or render failure falls
// back to plain token substitution with the same semantics.
type Personalizer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewPersonalizer creates a personalizer with a fresh Liquid engine.
func NewPersonalizer() *Personalizer {
	return &Personalizer{engine: liquid.NewEngine()}
}

// Bindings holds the per-recipient template variables.
type Bindings struct {
	FirstName      string
	LastName       string
	Email          string
	UnsubscribeURL string
	CTAURL         string
}

func (b Bindings) vars() map[string]interface{} {
	first := b.FirstName
	if first == "" {
		first = FirstNameFallback
	}
	return map[string]interface{}{
		"first_name":      first,
		"last_name":       b.LastName,
		"email":           b.Email,
		"unsubscribe_url": b.UnsubscribeURL,
		"cta_url":         b.CTAURL,
	}
}

// Render substitutes bindings into the given template source.
func (p *Personalizer) Render(source string, b Bindings) string {
	if source == "" {
		return source
	}

	tpl, err := p.template(source)
	if err == nil {
		out, renderErr := tpl.RenderString(b.vars())
		if renderErr == nil {
			return out
		}
		log.Printf("[Personalizer] render failed, using plain substitution: %v", renderErr)
	}

	return replaceTokens(source, b)
}

func (p *Personalizer) template(source string) (*liquid.Template, error) {
	if cached, ok := p.cache.Load(source); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := p.engine.ParseString(source)
	if err != nil {
		return nil, err
	}
	p.cache.Store(source, tpl)
	return tpl, nil
}

// replaceTokens is the non-Liquid fallback path. It recognizes the same
// variables in {{token}} form, with or without inner spaces.
func replaceTokens(content string, b Bindings) string {
	vars := b.vars()
	for name, value := range vars {
		v, _ := value.(string)
		content = strings.ReplaceAll(content, "{{"+name+"}}", v)
		content = strings.ReplaceAll(content, "{{ "+name+" }}", v)
	}
	return content
}
