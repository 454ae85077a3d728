// Package intent turns free text into the closed set of commands the bot understands.
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key names one recognized command
type Key string

const (
	Menu          Key = "MENU"
	Restart       Key = "RESTART"
	Cancel        Key = "CANCEL"
	Info          Key = "INFO"
	Support       Key = "SUPPORT"
	CreateAccount Key = "CREATE_ACCOUNT"
	Deposit       Key = "DEPOSIT"
	ForgotAccount Key = "FORGOT_ACCOUNT"
	Yes           Key = "YES"
	No            Key = "NO"
)

// phrases lists the variants for one intent. Exact entries must match the
// whole message, contains entries may appear anywhere in it.
type phrases struct {
	exact    []string
	contains []string
}

var table = map[Key]phrases{
	Menu: {
		exact:    []string{"MENU", "MENÚ", "INICIO", "START", "HOME"},
		contains: []string{"VOLVER AL MENU", "IR AL MENU", "MOSTRAR MENU", "MENU PRINCIPAL", "VOLVER AL INICIO"},
	},
	Restart: {
		exact:    []string{"REINICIAR", "RESET", "RESETAR", "RESTART"},
		contains: []string{"REINICIA", "REINICIAME", "RESET BOT", "REINICIAR BOT", "VOLVER A EMPEZAR"},
	},
	Cancel: {
		exact:    []string{"CANCELAR", "CANCEL", "SALIR"},
		contains: []string{"CANCELA", "CANCELAME", "SALIR DEL BOT", "SALIR DE ACA", "NO QUIERO SEGUIR"},
	},
	Info: {
		exact:    []string{"INFO", "INFORMACION", "INFORMACIÓN", "DATOS"},
		contains: []string{"QUIERO INFO", "NECESITO INFO", "MAS INFO", "MÁS INFO", "QUIERO INFORMACION"},
	},
	Support: {
		exact:    []string{"SOPORTE", "AYUDA", "ASISTENCIA", "HELP"},
		contains: []string{"NECESITO AYUDA", "NECESITO SOPORTE", "QUIERO AYUDA", "TENGO UN PROBLEMA", "NO PUEDO"},
	},
	CreateAccount: {
		exact:    []string{"CREAR", "USUARIO", "CREAR USUARIO", "NUEVO USUARIO", "CREAR CUENTA"},
		contains: []string{"QUIERO CREAR", "QUIERO UN USUARIO", "CREAME UN USUARIO", "GENERAR USUARIO", "HACER USUARIO"},
	},
	Deposit: {
		exact:    []string{"DEPOSITO", "DEPÓSITO", "CARGA", "CARGAR"},
		contains: []string{"QUIERO DEPOSITAR", "QUIERO HACER UN DEPOSITO", "HACER DEPOSITO", "HACER CARGA", "CARGAR SALDO", "MANDAR CARGA"},
	},
	ForgotAccount: {
		exact:    []string{"OLVIDE", "OLVIDE MI USUARIO", "RECUPERAR", "MI USUARIO"},
		contains: []string{"OLVIDE MI USUARIO", "OLVIDE MI CONTRASEÑA", "OLVIDE LA CONTRASEÑA", "RECUPERAR USUARIO", "RECUPERAR CUENTA", "NO ME ACUERDO"},
	},
	Yes: {
		exact:    []string{"SI", "SÍ", "S", "DALE", "OK", "OKAY", "VAMOS", "DE UNA"},
		contains: []string{"OBVIO", "CLARO", "POR SUPUESTO", "METELE", "DALE QUE SI"},
	},
	No: {
		exact:    []string{"NO", "N", "NOP", "NOPE"},
		contains: []string{"NEGATIVO", "AHORA NO", "MAS TARDE", "DESPUES", "NO QUIERO"},
	},
}

// Global commands work from any state; they are tested before state handling.
var (
	Restarts = []Key{Menu, Restart, Cancel}
	Commands = []Key{Menu, Restart, Cancel, Info, Support, CreateAccount, Deposit, ForgotAccount}
)

// normalized copies of the phrase table, built once
var compiled = compile(table)

// Normalize trims, uppercases and strips diacritics so "Menú " and "MENU" compare equal.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToUpper(strings.TrimSpace(text)))
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(text))
	}
	return folded
}

// Is reports whether normalized text expresses the intent key.
func Is(normalized string, key Key) bool {
	p, ok := compiled[key]
	if !ok || normalized == "" {
		return false
	}
	for _, x := range p.exact {
		if x == normalized {
			return true
		}
	}
	for _, x := range p.contains {
		if strings.Contains(normalized, x) {
			return true
		}
	}
	return false
}

// Any reports whether normalized matches at least one of keys.
func Any(normalized string, keys ...Key) bool {
	for _, k := range keys {
		if Is(normalized, k) {
			return true
		}
	}
	return false
}

// IsCommand is true for every intent that bypasses rate limiting.
func IsCommand(normalized string) bool {
	return Any(normalized, Commands...)
}

func compile(in map[Key]phrases) map[Key]phrases {
	out := make(map[Key]phrases, len(in))
	for k, p := range in {
		var c phrases
		for _, x := range p.exact {
			c.exact = append(c.exact, Normalize(x))
		}
		for _, x := range p.contains {
			c.contains = append(c.contains, Normalize(x))
		}
		out[k] = c
	}
	return out
}
