package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  menú ":        "MENU",
		"Depósito":       "DEPOSITO",
		"sí":             "SI",
		"Juan Pérez":     "JUAN PEREZ",
		"ÑANDÚ":          "NANDU",
		"":               "",
		"quiero INFO ya": "QUIERO INFO YA",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestIsExactAndContains(t *testing.T) {
	assert.True(t, Is(Normalize("menu"), Menu))
	assert.True(t, Is(Normalize("Menú"), Menu))
	assert.True(t, Is(Normalize("quiero volver al menú por favor"), Menu))
	assert.False(t, Is(Normalize("menudo"), Menu), "exact entries must match the whole text")

	assert.True(t, Is(Normalize("dale"), Yes))
	assert.True(t, Is(Normalize("claro que si"), Yes))
	assert.True(t, Is(Normalize("Obvio!"), Yes))
	assert.False(t, Is(Normalize("tal vez"), Yes))

	assert.True(t, Is(Normalize("no"), No))
	assert.True(t, Is(Normalize("ahora no, después"), No))

	assert.True(t, Is(Normalize("quiero depositar 5000"), Deposit))
	assert.True(t, Is(Normalize("olvidé mi contraseña"), ForgotAccount))
}

func TestIsUnknownKeyAndEmptyText(t *testing.T) {
	assert.False(t, Is("MENU", Key("NOPE")))
	assert.False(t, Is("", Menu))
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand(Normalize("ayuda")))
	assert.True(t, IsCommand(Normalize("crear usuario")))
	assert.True(t, IsCommand(Normalize("cargar")))
	assert.False(t, IsCommand(Normalize("si")), "yes/no are answers, not commands")
	assert.False(t, IsCommand(Normalize("hola")))
}

func TestAny(t *testing.T) {
	assert.True(t, Any(Normalize("salir"), Restarts...))
	assert.True(t, Any(Normalize("reset"), Restarts...))
	assert.False(t, Any(Normalize("info"), Restarts...))
}
