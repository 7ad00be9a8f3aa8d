package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"catalogserver/database"
	"catalogserver/importer"
	"catalogserver/normalization"
	"catalogserver/server/services"
)

func main() {
	dbPath := flag.String("db", "catalog.db", "путь к базе каталога")
	sheet := flag.String("sheet", "", "имя листа Excel (по умолчанию первый)")
	showRejections := flag.Bool("rejections", false, "печатать отбракованные строки")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Использование: %s [-db catalog.db] [-sheet имя] [-rejections] прайс-лист.xlsx\n", os.Args[0])
		os.Exit(2)
	}
	filePath := flag.Arg(0)

	log.Printf("Загрузка прайс-листа %s в базу %s", filePath, *dbPath)

	var offers []normalization.RawOffer
	var err error
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		offers, err = importer.ParseCSVFile(filePath)
	default:
		offers, err = importer.ParseExcelFile(filePath, *sheet)
	}
	if err != nil {
		var srcErr *importer.ErrSourceUnreadable
		if errors.As(err, &srcErr) {
			log.Fatalf("Источник не читается: %v", err)
		}
		log.Fatalf("Ошибка разбора файла: %v", err)
	}

	log.Printf("Прочитано %d строк", len(offers))

	db, err := database.NewCatalogDB(*dbPath)
	if err != nil {
		log.Fatalf("Ошибка открытия базы каталога: %v", err)
	}
	defer db.Close()

	svc := services.NewIngestionService(db, nil)
	report, err := svc.Ingest(context.Background(), offers, filepath.Base(filePath))
	if err != nil {
		log.Fatalf("Ошибка загрузки: %v", err)
	}

	fmt.Println(report.String())

	if *showRejections && len(report.Rejections) > 0 {
		fmt.Println("Отбракованные строки:")
		for _, rejection := range report.Rejections {
			fmt.Printf("  строка %d: %s (%s)\n", rejection.RowNumber, rejection.Reason, rejection.Detail)
		}
	}

	if stats, err := db.GetStats(); err == nil {
		fmt.Printf("Каталог: продуктов=%d листингов=%d поставщиков=%d брендов=%d категорий=%d\n",
			stats.Products, stats.Listings, stats.Providers, stats.Brands, stats.Categories)
	}
}
