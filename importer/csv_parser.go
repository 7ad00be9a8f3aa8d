package importer

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"catalogserver/normalization"
)

// ParseCSVFile парсит CSV-прайс-лист
// Старые выгрузки поставщиков иногда приходят в Windows-1251:
// если файл не валидный UTF-8, он перекодируется
func ParseCSVFile(filePath string) ([]normalization.RawOffer, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, &ErrSourceUnreadable{Reason: "failed to open CSV file", Err: err}
	}
	defer file.Close()

	return ParseCSVReader(file)
}

// ParseCSVReader парсит CSV из потока с автоопределением кодировки
func ParseCSVReader(r io.Reader) ([]normalization.RawOffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ErrSourceUnreadable{Reason: "failed to read CSV stream", Err: err}
	}

	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1251.NewDecoder(), data)
		if err != nil {
			return nil, &ErrSourceUnreadable{Reason: "failed to decode CSV as Windows-1251", Err: err}
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // строки могут быть короче заголовка

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ErrSourceUnreadable{Reason: "malformed CSV", Err: err}
		}
		rows = append(rows, record)
	}

	// Файл только с заголовком - корректная загрузка нуля строк
	if len(rows) == 0 {
		return nil, &ErrSourceUnreadable{Reason: "CSV has no header row"}
	}

	return parseRows(rows)
}
