package mail

import (
	"bytes"
	"html/template"
	"strings"
)

const WelcomeSubject = "Bem-vindo(a) à nossa loja!"

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<body style="font-family: Arial, sans-serif; color: #222;">
  <h1>Olá, {{.Name}}!</h1>
  <p>Obrigado por se cadastrar. Agora você acompanha seus pedidos, recebe novidades e ofertas exclusivas.</p>
  {{if .StoreURL}}<p><a href="{{.StoreURL}}">Visite a loja</a></p>{{end}}
  <p>Até breve!</p>
</body>
</html>`))

// WelcomeEmail renders the welcome email body.
func WelcomeEmail(name, storeURL string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "cliente"
	}
	var buf bytes.Buffer
	err := welcomeTemplate.Execute(&buf, struct {
		Name     string
		StoreURL string
	}{Name: name, StoreURL: storeURL})
	return buf.String(), err
}
