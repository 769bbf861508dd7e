package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	t.Run("substitutes known fields", func(t *testing.T) {
		out := Render("Hola {nombre}, bienvenido a {empresa}", map[string]string{
			"nombre":  "Ana",
			"empresa": "Acme",
		})
		assert.Equal(t, "Hola Ana, bienvenido a Acme", out)
	})

	t.Run("strips unresolved placeholders", func(t *testing.T) {
		out := Render("Hola {nombre}, tu código es {codigo}", map[string]string{
			"nombre": "Ana",
		})
		assert.Equal(t, "Hola Ana, tu código es", out)
	})

	t.Run("empty values become empty strings", func(t *testing.T) {
		out := Render("{nombre}{empresa}x", map[string]string{
			"nombre":  "",
			"empresa": "",
		})
		assert.Equal(t, "x", out)
	})

	t.Run("no matching fields strips everything and trims", func(t *testing.T) {
		out := Render("  {a} hola {b}  ", map[string]string{"z": "1"})
		assert.Equal(t, "hola", out)
	})

	t.Run("pure function renders identically twice", func(t *testing.T) {
		body := "Hola {nombre}, {pendiente}"
		data := map[string]string{"nombre": "Ana"}
		assert.Equal(t, Render(body, data), Render(body, data))
	})

	t.Run("body without placeholders is returned trimmed", func(t *testing.T) {
		assert.Equal(t, "hola mundo", Render("  hola mundo \n", nil))
	})
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders("Hola {nombre}, de {empresa}. Saludos, {nombre}")
	assert.Equal(t, []string{"nombre", "empresa"}, names)

	assert.Empty(t, Placeholders("sin variables"))
}

func TestCheckCompliance(t *testing.T) {
	t.Run("clean body is compliant", func(t *testing.T) {
		report := CheckCompliance("Hola, su cita es mañana")
		assert.True(t, report.Compliant)
		assert.Empty(t, report.Warnings)
	})

	t.Run("promotional keywords flagged", func(t *testing.T) {
		report := CheckCompliance("Gran oferta para usted")
		assert.False(t, report.Compliant)
		assert.Len(t, report.Warnings, 1)
	})

	t.Run("variables reported", func(t *testing.T) {
		report := CheckCompliance("Hola {nombre}")
		assert.False(t, report.Compliant)
		assert.Equal(t, []string{"nombre"}, report.Variables)
	})
}
