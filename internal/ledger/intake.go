package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

// IntakeRequest is the raw payload accepted by ParseIntake.
type IntakeRequest struct {
	SourceType    domain.IntakeSourceType
	Text          string     // pdf_invoice / scanned_document
	Items         []domain.IntakeItem // manual
	Rows          [][]string // excel
	OCRConfidence float64    // scanned_document
	Location      string
}

var invoiceLinePattern = regexp.MustCompile(`^\s*(.+?)\s*-\s*(.+?)\s*-\s*(\d{4})\s*-\s*(\d+)\s*-\s*([\d.]+)\s*$`)

// ParseIntake dispatches on SourceType per spec.md §4.6.
func ParseIntake(req IntakeRequest) (*domain.IntakeResult, error) {
	result := &domain.IntakeResult{
		ID:         uuid.NewString(),
		SourceType: req.SourceType,
		CreatedAt:  time.Now().UTC(),
	}

	switch req.SourceType {
	case domain.IntakeSourceManual:
		for _, item := range req.Items {
			if item.Quantity <= 0 {
				result.RejectedRaw = append(result.RejectedRaw, fmt.Sprintf("%s %s: invalid quantity", item.Name, item.Producer))
				continue
			}
			result.Items = append(result.Items, item)
		}

	case domain.IntakeSourcePDFInvoice:
		items, rejected := parseInvoiceLines(req.Text, req.Location)
		result.Items, result.RejectedRaw = items, rejected

	case domain.IntakeSourceScannedDocument:
		if req.OCRConfidence < 0.5 {
			return nil, domain.ErrLowOCRConfidence
		}
		items, rejected := parseInvoiceLines(req.Text, req.Location)
		result.Items, result.RejectedRaw = items, rejected

	case domain.IntakeSourceExcel:
		items, rejected := parseExcelRows(req.Rows, req.Location)
		result.Items, result.RejectedRaw = items, rejected

	default:
		return nil, domain.ErrIntakeUnparseable
	}

	if len(result.Items) == 0 && len(result.RejectedRaw) == 0 {
		return nil, domain.ErrIntakeUnparseable
	}
	return result, nil
}

// parseInvoiceLines parses "name - producer - year - qty - unit_cost"
// lines, tolerating permissive surrounding whitespace.
func parseInvoiceLines(text, location string) ([]domain.IntakeItem, []string) {
	var items []domain.IntakeItem
	var rejected []string

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := invoiceLinePattern.FindStringSubmatch(line)
		if m == nil {
			rejected = append(rejected, line)
			continue
		}
		year, err1 := strconv.Atoi(m[3])
		qty, err2 := strconv.Atoi(m[4])
		unitCost, err3 := strconv.ParseFloat(m[5], 64)
		if err1 != nil || err2 != nil || err3 != nil || qty <= 0 {
			rejected = append(rejected, line)
			continue
		}
		items = append(items, domain.IntakeItem{
			Name:     m[1],
			Producer: m[2],
			Year:     year,
			Quantity: qty,
			UnitCost: unitCost,
			Location: location,
		})
	}
	return items, rejected
}

// parseExcelRows coerces [name, year, qty, unit_cost, location, producer,
// region, wine_type] rows, falling back to the request's default location
// when a row omits one.
func parseExcelRows(rows [][]string, defaultLocation string) ([]domain.IntakeItem, []string) {
	var items []domain.IntakeItem
	var rejected []string

	for _, row := range rows {
		if len(row) < 4 {
			rejected = append(rejected, strings.Join(row, ","))
			continue
		}
		year, err1 := strconv.Atoi(strings.TrimSpace(row[1]))
		qty, err2 := strconv.Atoi(strings.TrimSpace(row[2]))
		unitCost, err3 := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err1 != nil || err2 != nil || err3 != nil || qty <= 0 {
			rejected = append(rejected, strings.Join(row, ","))
			continue
		}

		item := domain.IntakeItem{
			Name:     strings.TrimSpace(row[0]),
			Year:     year,
			Quantity: qty,
			UnitCost: unitCost,
			Location: defaultLocation,
		}
		if len(row) > 4 && strings.TrimSpace(row[4]) != "" {
			item.Location = strings.TrimSpace(row[4])
		}
		if len(row) > 5 {
			item.Producer = strings.TrimSpace(row[5])
		}
		if len(row) > 6 {
			item.Region = strings.TrimSpace(row[6])
		}
		if len(row) > 7 {
			item.WineType = domain.WineType(strings.TrimSpace(row[7]))
		}
		items = append(items, item)
	}
	return items, rejected
}
