package email

import (
	"bytes"
	"embed"
	"html/template"
	texttpl "text/template"
)

//go:embed templates/*
var templateFS embed.FS

// Templates contiene las plantillas ya parseadas.
type Templates struct {
	VerifyHTML *template.Template
	VerifyTXT  *texttpl.Template
}

type VerifyVars struct {
	DisplayName string
	Link        string
	TTL         string
}

func LoadTemplates() (*Templates, error) {
	vh, err := template.ParseFS(templateFS, "templates/verify_email.html")
	if err != nil {
		return nil, err
	}
	vt, err := texttpl.ParseFS(templateFS, "templates/verify_email.txt")
	if err != nil {
		return nil, err
	}
	return &Templates{VerifyHTML: vh, VerifyTXT: vt}, nil
}

func (t *Templates) RenderVerify(vars VerifyVars) (htmlBody, textBody string, err error) {
	var hb, tb bytes.Buffer
	if err := t.VerifyHTML.Execute(&hb, vars); err != nil {
		return "", "", err
	}
	if err := t.VerifyTXT.Execute(&tb, vars); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}
