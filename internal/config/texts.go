package config

import "strings"

// Texts are every user-facing message. Placeholders use {{name}} syntax.
type Texts struct {
	Welcome           string `yaml:"welcome,omitempty" json:"welcome,omitempty"`
	MenuOptions       string `yaml:"menu_options,omitempty" json:"menu_options,omitempty"` // {{options}}
	MoreHelp          string `yaml:"more_help,omitempty" json:"more_help,omitempty"`
	Info              string `yaml:"info,omitempty" json:"info,omitempty"`
	Support           string `yaml:"support,omitempty" json:"support,omitempty"`
	AskName           string `yaml:"ask_name,omitempty" json:"ask_name,omitempty"`
	InvalidName       string `yaml:"invalid_name,omitempty" json:"invalid_name,omitempty"`
	Creating          string `yaml:"creating,omitempty" json:"creating,omitempty"`
	PleaseWait        string `yaml:"please_wait,omitempty" json:"please_wait,omitempty"`
	UsernameLabel     string `yaml:"username_label,omitempty" json:"username_label,omitempty"`
	PasswordLabel     string `yaml:"password_label,omitempty" json:"password_label,omitempty"`
	URLLabel          string `yaml:"url_label,omitempty" json:"url_label,omitempty"`
	AskDeposit        string `yaml:"ask_deposit,omitempty" json:"ask_deposit,omitempty"`
	BankDetails       string `yaml:"bank_details,omitempty" json:"bank_details,omitempty"`
	AccountNumber     string `yaml:"account_number,omitempty" json:"account_number,omitempty"` // CBU
	AskProof          string `yaml:"ask_proof,omitempty" json:"ask_proof,omitempty"`
	DepositImageText  string `yaml:"deposit_image_caption,omitempty" json:"deposit_image_caption,omitempty"`
	ProofRedirect     string `yaml:"proof_redirect,omitempty" json:"proof_redirect,omitempty"`
	DepositNo         string `yaml:"deposit_no,omitempty" json:"deposit_no,omitempty"`
	PhotoRequest      string `yaml:"photo_request,omitempty" json:"photo_request,omitempty"`
	PhotoRequestEmpty string `yaml:"photo_request_empty,omitempty" json:"photo_request_empty,omitempty"`
	ProofAlreadySent  string `yaml:"proof_already_sent,omitempty" json:"proof_already_sent,omitempty"`
	ProofReminder     string `yaml:"proof_reminder,omitempty" json:"proof_reminder,omitempty"`
	WelcomeBack       string `yaml:"welcome_back,omitempty" json:"welcome_back,omitempty"`
	ReturningGreeting string `yaml:"returning_greeting,omitempty" json:"returning_greeting,omitempty"` // {{name}} {{username}}
	AlreadyHasAccount string `yaml:"already_has_account,omitempty" json:"already_has_account,omitempty"`
	ForgotFound       string `yaml:"forgot_found,omitempty" json:"forgot_found,omitempty"`
	ForgotNotFound    string `yaml:"forgot_not_found,omitempty" json:"forgot_not_found,omitempty"`
	ErrorConfig       string `yaml:"error_config,omitempty" json:"error_config,omitempty"`
	ErrorBusy         string `yaml:"error_busy,omitempty" json:"error_busy,omitempty"`
	ErrorMaintenance  string `yaml:"error_maintenance,omitempty" json:"error_maintenance,omitempty"`
	ErrorAuth         string `yaml:"error_auth,omitempty" json:"error_auth,omitempty"`
	ErrorGeneric      string `yaml:"error_generic,omitempty" json:"error_generic,omitempty"`
}

// DefaultTexts are the built-in messages
func DefaultTexts() Texts {
	return Texts{
		Welcome:     "¡Hola! ¿Cómo podemos ayudarte?",
		MenuOptions: "Respondé con: {{options}}",
		MoreHelp:    "¿Querés saber algo más?",
		Info: "📲 Somos líderes\n" +
			"- Mínimo de carga: $1.000\n" +
			"- Mínimo de retiro: $3.000\n" +
			"- Retiros ilimitados\n" +
			"- Atención 24hs",
		Support:       "Por soporte personalizado comunicate con nuestra línea de atención.",
		AskName:       "Perfecto ✅\nDecime tu nombre (solo tu nombre, por ejemplo: Juan).",
		InvalidName:   "Te leo 🙌 Mandame solo tu nombre (sin números, emojis ni símbolos).",
		Creating:      "Dale, un segundo… estoy creando tu usuario ✅",
		PleaseWait:    "⏳ Estoy terminando de crear tu usuario, aguardá un momento.",
		UsernameLabel: "👤 Tu usuario:",
		PasswordLabel: "🔑 Tu contraseña:",
		URLLabel:      "🌐 Entrá acá:",
		AskDeposit:    "¿Querés hacer tu primera carga ahora? Respondé SI o NO.",
		BankDetails: "Perfecto! Te paso los datos bancarios:\n" +
			"👤 TITULAR: (configurar titular)\n" +
			"ALIAS: (configurar alias)\n" +
			"⬇️⬇️⬇️",
		AccountNumber:    "0000000000000000000000",
		AskProof:         "📸 Ahora enviá por acá la *foto del comprobante*.",
		DepositImageText: "",
		ProofRedirect: "Estás listo para comenzar! 🥳\n" +
			"Ahora te derivamos con nuestra línea de caja principal para acreditar tu carga.\n" +
			"Por favor, enviá por ese medio:\n" +
			"-Tu nombre de usuario\n" +
			"-El comprobante de pago\n" +
			"-El nombre del titular de la cuenta\n" +
			"¡Gracias y muchísima suerte!",
		DepositNo: "👍 No hay problema. Podés depositar cuando quieras desde tu cuenta.\n\n" +
			"¡Nos vemos en el juego!\n\n" +
			"Para mandar tu primera carga escribí: Deposito",
		PhotoRequest:      "📸 Por favor, enviá el comprobante como *foto* (no en texto).",
		PhotoRequestEmpty: "📸 Por favor, enviá el comprobante como *foto* por acá.",
		ProofAlreadySent:  "📸 Ya te pasé los datos. Ahora enviá la *foto del comprobante* por acá.",
		ProofReminder:     "⏰ ¿Pudiste hacer la transferencia? Cuando la tengas, enviá la *foto del comprobante* por acá.",
		WelcomeBack:       "¡Hola de nuevo! 👋 Ya tenés tu usuario creado.\nEscribí DEPOSITO para cargar o MENU para empezar de nuevo.",
		ReturningGreeting: "¡Hola {{name}}! 👋 Qué bueno verte de nuevo. Tu usuario es {{username}}.\nEscribí DEPOSITO para cargar.",
		AlreadyHasAccount: "Ya tenés un usuario creado ✅ Si querés empezar de nuevo escribí MENU.",
		ForgotFound:       "Encontré tu usuario 🙌 Te paso los datos:",
		ForgotNotFound:    "No encontré un usuario asociado a este número. Escribí CREAR USUARIO para crear uno.",
		ErrorConfig:       "❌ Error de configuración. Contactá al administrador.",
		ErrorBusy:         "⏳ Sistema ocupado. Por favor, intentá más tarde.",
		ErrorMaintenance:  "⚠️ El sistema está en mantenimiento. Por favor, intentá de nuevo en unos minutos.",
		ErrorAuth:         "❌ No pudimos validar el acceso al sistema. Contactá al administrador.",
		ErrorGeneric:      "Hubo un error al crear el usuario. Probá de nuevo más tarde.",
	}
}

// withDefaults fills every empty message with its built-in value
func (t Texts) withDefaults() Texts {
	out := DefaultTexts()
	if err := overlay(&out, t.trimmed()); err != nil {
		return DefaultTexts()
	}
	return out
}

// Render replaces {{key}} placeholders. Unknown keys render empty.
func Render(tmpl string, vars map[string]string) string {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		name := strings.TrimSpace(rest[start+2 : start+end])
		b.WriteString(vars[name])
		rest = rest[start+end+2:]
	}
	return b.String()
}

func (t Texts) trimmed() Texts {
	fields := []*string{
		&t.Welcome, &t.MenuOptions, &t.MoreHelp, &t.Info, &t.Support, &t.AskName, &t.InvalidName,
		&t.Creating, &t.PleaseWait, &t.UsernameLabel, &t.PasswordLabel, &t.URLLabel, &t.AskDeposit,
		&t.BankDetails, &t.AccountNumber, &t.AskProof, &t.DepositImageText, &t.ProofRedirect,
		&t.DepositNo, &t.PhotoRequest, &t.PhotoRequestEmpty, &t.ProofAlreadySent, &t.ProofReminder,
		&t.WelcomeBack, &t.ReturningGreeting, &t.AlreadyHasAccount, &t.ForgotFound, &t.ForgotNotFound,
		&t.ErrorConfig, &t.ErrorBusy, &t.ErrorMaintenance, &t.ErrorAuth, &t.ErrorGeneric,
	}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
	return t
}
