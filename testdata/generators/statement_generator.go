// Statement generator produces sample bank statement CSV files in every
// supported export layout. Useful for manual testing of the import pipeline:
//
//	go run testdata/generators/statement_generator.go -layout bradesco -rows 50 -out statement.csv
//
// The generator can inject duplicate rows (to exercise idempotent inserts)
// and a malformed row (to exercise whole-file abort).
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"
)

var descriptions = []string{
	"DIZIMO JOAO SILVA",
	"OFERTA CULTO DOMINGO",
	"PIX RECEBIDO MARIA SOUZA",
	"PAGTO CONTA DE LUZ",
	"PAGTO ALUGUEL SALAO",
	"TRANSFERENCIA MISSOES",
	"COMPRA MATERIAL LIMPEZA",
	"DOACAO CAMPANHA CONSTRUCAO",
}

type row struct {
	date        time.Time
	description string
	reference   string
	amount      float64
}

func main() {
	layout := flag.String("layout", "generic", "export layout: bradesco, santander or generic")
	rows := flag.Int("rows", 20, "number of statement rows")
	month := flag.Int("month", int(time.Now().Month()), "statement month")
	year := flag.Int("year", time.Now().Year(), "statement year")
	duplicates := flag.Int("duplicates", 0, "number of rows to repeat verbatim")
	malformed := flag.Bool("malformed", false, "append one malformed row")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	data := generate(rng, *rows, *month, *year)
	for i := 0; i < *duplicates && i < len(data); i++ {
		data = append(data, data[rng.Intn(*rows)])
	}

	var b strings.Builder
	switch *layout {
	case "bradesco":
		renderBradesco(&b, data, *malformed)
	case "santander":
		renderSantander(&b, data, *malformed)
	case "generic":
		renderGeneric(&b, data, *malformed)
	default:
		log.Fatalf("unknown layout %q", *layout)
	}

	if *out == "" {
		fmt.Print(b.String())
		return
	}

	if err := os.WriteFile(*out, []byte(b.String()), 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", len(data), *out)
}

func generate(rng *rand.Rand, count, month, year int) []row {
	rows := make([]row, count)
	for i := range rows {
		day := 1 + rng.Intn(28)
		amount := float64(rng.Intn(500000)+100) / 100
		if rng.Intn(3) == 0 {
			amount = -amount
		}
		reference := ""
		if rng.Intn(2) == 0 {
			reference = fmt.Sprintf("DOC%06d", rng.Intn(1000000))
		}
		rows[i] = row{
			date:        time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
			description: descriptions[rng.Intn(len(descriptions))],
			reference:   reference,
			amount:      amount,
		}
	}
	return rows
}

func brAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	return strings.ReplaceAll(s, ".", ",")
}

func renderBradesco(b *strings.Builder, rows []row, malformed bool) {
	b.WriteString("Data;Lancamento;Documento;Valor\n")
	for _, r := range rows {
		fmt.Fprintf(b, "%s;%s;%s;%s\n",
			r.date.Format("02/01/2006"), r.description, r.reference, brAmount(r.amount))
	}
	if malformed {
		b.WriteString("31/02/xxxx;BROKEN ROW;;abc\n")
	}
}

func renderSantander(b *strings.Builder, rows []row, malformed bool) {
	b.WriteString("Data;Historico;Documento;Credito;Debito\n")
	for _, r := range rows {
		credit, debit := "", ""
		if r.amount >= 0 {
			credit = brAmount(r.amount)
		} else {
			debit = brAmount(-r.amount)
		}
		fmt.Fprintf(b, "%s;%s;%s;%s;%s\n",
			r.date.Format("02/01/2006"), r.description, r.reference, credit, debit)
	}
	if malformed {
		b.WriteString("31/02/xxxx;BROKEN ROW;;;\n")
	}
}

func renderGeneric(b *strings.Builder, rows []row, malformed bool) {
	b.WriteString("date,description,reference,amount\n")
	for _, r := range rows {
		fmt.Fprintf(b, "%s,%s,%s,%.2f\n",
			r.date.Format("2006-01-02"), r.description, r.reference, r.amount)
	}
	if malformed {
		b.WriteString("not-a-date,BROKEN ROW,,abc\n")
	}
}
