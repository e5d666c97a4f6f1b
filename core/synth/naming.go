package synth

import (
	"strings"
	"unicode"

	"github.com/artpar/channelgen/domain/address"
)

var initialisms = map[string]bool{
	"api": true, "id": true, "ids": true, "http": true, "https": true, "ip": true,
	"json": true, "sql": true, "sse": true, "uri": true, "url": true, "uuid": true,
}

// words splits an identifier-ish string on non-alphanumerics and lower-to-upper
// case changes: "user_signedUp.v2" -> user, signed, Up, v2.
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	var prev rune
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return out
}

// Exported converts s to an exported Go identifier: "user/{id}" -> "UserID".
func Exported(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		lw := strings.ToLower(w)
		if initialisms[lw] {
			b.WriteString(strings.ToUpper(lw))
			continue
		}
		rs := []rune(w)
		b.WriteRune(unicode.ToUpper(rs[0]))
		b.WriteString(string(rs[1:]))
	}
	id := b.String()
	if id == "" {
		return "X"
	}
	if unicode.IsDigit([]rune(id)[0]) {
		id = "X" + id
	}
	return id
}

// Unexported converts s to an unexported identifier prefix: "UserID" ->
// "userID", "ID" -> "id". The result may be a keyword; callers append to it.
func Unexported(s string) string {
	ws := words(s)
	if len(ws) == 0 {
		return "x"
	}
	first := strings.ToLower(ws[0])
	id := first + strings.TrimPrefix(Exported(s), Exported(ws[0]))
	if unicode.IsDigit([]rune(id)[0]) {
		id = "x" + id
	}
	return id
}

// Names derives every generated identifier of one channel.
type Names struct {
	Exported   string
	Unexported string
}

// NamesFor returns the names of channel id.
func NamesFor(id string) Names {
	return Names{Exported: Exported(id), Unexported: Unexported(id)}
}

func (n Names) Parameters() string { return n.Exported + "Parameters" }
func (n Names) ParametersFrom() string { return n.Unexported + "ParametersFrom" }
func (n Names) Inbound() string { return n.Exported + "Inbound" }
func (n Names) Handler() string { return n.Exported + "Handler" }
func (n Names) Responder() string { return n.Exported + "Responder" }
func (n Names) Message() string { return n.Exported + "Message" }
func (n Names) Reply() string { return n.Exported + "Reply" }

// Channel is the package variable holding the channel rendered for d.
func (n Names) Channel(d address.Delimiter) string {
	return n.Unexported + delimiterName(d) + "Channel"
}

// Decoder is the package variable decoding inbound messages for d.
func (n Names) Decoder(d address.Delimiter) string {
	return n.Unexported + delimiterName(d) + "Decoder"
}

var funcPrefix = map[Operation]string{
	JetStreamPublish:       "JetStreamPublish",
	JetStreamPushSubscribe: "JetStreamSubscribe",
	JetStreamPullSubscribe: "JetStreamPull",
	ExchangePublish:        "PublishExchange",
}

// Func is the exported function implementing op for a protocol.
func (n Names) Func(op Operation, suffix string) string {
	prefix, ok := funcPrefix[op]
	if !ok {
		prefix = Exported(string(op))
	}
	return prefix + n.Exported + suffix
}

func delimiterName(d address.Delimiter) string {
	if d == address.Slash {
		return "Path"
	}
	return "Topic"
}

// ValidatorName is the package variable validating messages of goType.
func ValidatorName(goType string) string {
	return "validate" + Exported(goType)
}

// Snake converts s to a lower snake_case file name stem:
// "userSignedUp" -> "user_signed_up", "HTTPClient" -> "httpclient".
func Snake(s string) string {
	ws := words(s)
	if len(ws) == 0 {
		return "x"
	}
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	return strings.Join(ws, "_")
}
