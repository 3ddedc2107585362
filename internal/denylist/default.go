package denylist

// DefaultPatterns are the irreversible actions the guard always blocks
// unless a denylist file replaces them.
var DefaultPatterns = Patterns{
	Commands: []string{
		`\brm\s+-[a-z]*r[a-z]*\s+(/|~|\$home)/?\*?(\s|$)`,
		`\bdd\s+if=/dev/(zero|random|urandom)\b`,
		`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`,
		`\bmkfs(\.\w+)?\b`,
		`>\s*/dev/(sd[a-z]|nvme\d)`,
		`\bchmod\s+-r\s+777\s+/(\s|$)`,
		`\bsudo\s+(su|-i|-s)(\s|$)`,
		`\bgit\s+push\b.*\s(--force|-f)(\s|$|-)`,
		`\bprintenv\b`,
		`/proc/(self|\d+|\*)/environ`,
	},
	Files: []string{
		"~/.ssh/id_*",
		"~/.aws/credentials",
		"~/.config/gcloud/**",
		"**/.env",
		"**/.env.local",
		"**/credentials.json",
		"**/*.kdbx",
		"**/*.pem",
	},
	URLs: []string{
		"/checkout",
		"/payment",
		"stripe.com/v1/charges",
		"stripe.com/v1/payment_intents",
		"paypal.com/v*/payments",
		"/oauth/token",
		"/account/delete",
	},
}
