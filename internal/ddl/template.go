// Package ddl resolves parameterized Athena DDL templates into executable statements.
package ddl

import (
	"errors"
	"io/fs"
	"strings"

	"quilt-athena/internal/domain"
)

// Recognized placeholder names.
const (
	PlaceholderPrefix = "prefix"
	PlaceholderBucket = "bucket"
)

// Resolve substitutes {prefix} and {bucket} in templateText. Doubled braces
// ({{ and }}) produce literal braces. Any other placeholder, an unterminated
// brace, or an empty template is a *domain.TemplateError.
//
// Resolve is pure: identical inputs always yield an identical statement.
func Resolve(templateText string, params domain.ProvisioningParameters) (string, error) {
	if strings.TrimSpace(templateText) == "" {
		return "", domain.ErrTemplate("template is empty")
	}

	var b strings.Builder
	b.Grow(len(templateText) + len(params.Prefix) + len(params.BucketName))

	for i := 0; i < len(templateText); i++ {
		c := templateText[i]
		switch c {
		case '{':
			if i+1 < len(templateText) && templateText[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(templateText[i+1:], '}')
			if end < 0 {
				return "", domain.ErrTemplate("unterminated placeholder at offset %d", i)
			}
			name := templateText[i+1 : i+1+end]
			switch name {
			case PlaceholderPrefix:
				b.WriteString(params.Prefix)
			case PlaceholderBucket:
				b.WriteString(params.BucketName)
			default:
				return "", domain.ErrTemplate("unknown placeholder {%s} at offset %d", name, i)
			}
			i += end + 1
		case '}':
			if i+1 < len(templateText) && templateText[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", domain.ErrTemplate("unmatched '}' at offset %d", i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// Resolver reads templates from a file system and resolves them.
type Resolver struct {
	templates fs.FS
}

// NewResolver creates a resolver over the given template tree.
func NewResolver(templates fs.FS) *Resolver {
	return &Resolver{templates: templates}
}

// ResolveFile reads the template at path and resolves it. A missing or
// unreadable file is reported as a *domain.TemplateError carrying the path.
func (r *Resolver) ResolveFile(path string, params domain.ProvisioningParameters) (string, error) {
	text, err := r.Load(path)
	if err != nil {
		return "", err
	}
	stmt, err := Resolve(text, params)
	if err != nil {
		var tErr *domain.TemplateError
		if errors.As(err, &tErr) && tErr.Path == "" {
			tErr.Path = path
		}
		return "", err
	}
	return stmt, nil
}

// Load returns the raw template text at path.
func (r *Resolver) Load(path string) (string, error) {
	if path == "" {
		return "", domain.ErrTemplate("template path is required")
	}
	data, err := fs.ReadFile(r.templates, path)
	if err != nil {
		msg := "unreadable"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "not found"
		}
		return "", &domain.TemplateError{Path: path, Message: msg, Err: err}
	}
	return string(data), nil
}
