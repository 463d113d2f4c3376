// Package petition renders the built-in moral damages petition from the
// case data found in a processing response.
package petition

import (
	_ "embed"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

//go:embed template.txt
var templateText string

const (
	FieldAutor        = "peticao_inicial.autor"
	FieldReu          = "peticao_inicial.reu"
	FieldValorDaCausa = "valor_da_causa"

	fallbackAutor = "[NOME DO AUTOR]"
	fallbackReu   = "[NOME DO RÉU]"
	fallbackValor = "[VALOR DA CAUSA]"
)

// ErrFormat is returned when the petition cannot be rendered at all.
var ErrFormat = errors.New("falha na geração do documento formatado")

type Generated struct {
	Conteudo    string `json:"conteudo"`
	DataGeracao string `json:"data_geracao"`
}

type Validation struct {
	Valido        bool     `json:"valido"`
	MissingFields []string `json:"missing_fields"`
}

// Template returns the petition text with its placeholders intact.
func Template() string {
	return strings.TrimRight(templateText, "\n")
}

type Formatter struct {
	Now func() time.Time
}

// Format substitutes {autor}, {reu} and {valor_da_causa}. Missing values are
// replaced with bracketed instructions, so Format does not fail on absent data.
func (f Formatter) Format(content string) (Generated, error) {
	tmpl := Template()
	if tmpl == "" {
		return Generated{}, ErrFormat
	}
	data := extract(content)
	r := strings.NewReplacer(
		"{autor}", orDefault(data.autor, fallbackAutor),
		"{reu}", orDefault(data.reu, fallbackReu),
		"{valor_da_causa}", orDefault(data.valor, fallbackValor),
	)
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	return Generated{
		Conteudo:    r.Replace(tmpl),
		DataGeracao: now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// Validate reports which required fields are absent from content.
func Validate(content string) Validation {
	data := extract(content)
	missing := []string{}
	if data.autor == "" {
		missing = append(missing, FieldAutor)
	}
	if data.reu == "" {
		missing = append(missing, FieldReu)
	}
	if data.valor == "" {
		missing = append(missing, FieldValorDaCausa)
	}
	return Validation{Valido: len(missing) == 0, MissingFields: missing}
}

type caseData struct {
	autor string
	reu   string
	valor string
}

// extract reads the case fields; anything that is not a JSON object yields empty data.
func extract(content string) caseData {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &doc); err != nil {
		return caseData{}
	}
	d := caseData{valor: scalar(doc["valor_da_causa"])}
	var parties map[string]json.RawMessage
	if err := json.Unmarshal(doc["peticao_inicial"], &parties); err == nil {
		d.autor = scalar(parties["autor"])
		d.reu = scalar(parties["reu"])
	}
	return d
}

// scalar renders strings as-is and numbers in plain decimal. Nulls, empty
// strings and composite values count as missing.
func scalar(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if f, err := n.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return n.String()
	}
	return ""
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
