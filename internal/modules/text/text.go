// Package text is a small demonstration module served by the modserve
// binary. Its endpoints exercise params validation end to end.
package text

import (
	"context"
	"fmt"

	"github.com/comnet/modserve/internal/server"
)

// Module implements server.Module.
type Module struct{}

func New() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "text"
}

// GenerateParams scores the caller's self-reported awesomeness. Omitted
// means 42.
type GenerateParams struct {
	Awesomeness *int `json:"awesomeness" validate:"omitempty,gte=0,lte=100"`
}

// ReverseParams holds the string to reverse.
type ReverseParams struct {
	Text string `json:"text" validate:"required,max=1024"`
}

func (m *Module) Endpoints() []server.Endpoint {
	return []server.Endpoint{
		{
			Name:    "generate",
			Params:  func() any { return &GenerateParams{} },
			Handler: m.generate,
		},
		{
			Name:    "reverse",
			Params:  func() any { return &ReverseParams{} },
			Handler: m.reverse,
		},
	}
}

func (m *Module) generate(_ context.Context, params any) (any, error) {
	p := params.(*GenerateParams)
	awesomeness := 42
	if p.Awesomeness != nil {
		awesomeness = *p.Awesomeness
	}

	var msg string
	if awesomeness > 60 {
		msg = fmt.Sprintf("You're super awesome: %d awesomeness", awesomeness)
	} else {
		msg = fmt.Sprintf("You're not that awesome: %d awesomeness", awesomeness)
	}
	return map[string]string{"msg": msg}, nil
}

func (m *Module) reverse(_ context.Context, params any) (any, error) {
	p := params.(*ReverseParams)
	runes := []rune(p.Text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return map[string]string{"text": string(runes)}, nil
}
