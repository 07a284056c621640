// Package imports replays spreadsheet sale rows through the sale processor.
// Rows run one at a time, each in its own transaction; a failing row is
// reported and skipped without touching the rows around it.
package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/internal/activity"
	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/sales"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
)

const defaultMaxRows = 5000

type auditor interface {
	Append(ctx context.Context, userID *uuid.UUID, action, description string)
}

// Row is one spreadsheet line, addressed by node names instead of ids.
type Row struct {
	PartnerName string `json:"partnerName"`
	BranchName  string `json:"branchName"`
	SellerName  string `json:"sellerName"`
	VoucherType string `json:"voucherType"`
	Quantity    int    `json:"qty"`
}

type Input struct {
	PerformerID   uuid.UUID
	PerformerRole enums.Role
	Rows          []Row
}

// RowError reports a failed row by its 1-based position in the batch.
type RowError struct {
	Row     int            `json:"row"`
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
}

type Result struct {
	SuccessCount int        `json:"successCount"`
	ErrorCount   int        `json:"errorCount"`
	Errors       []RowError `json:"errors"`
}

type Importer interface {
	ImportSales(ctx context.Context, input Input) (*Result, error)
}

type ImporterParams struct {
	Processor sales.Processor
	Directory hierarchy.Directory
	Audit     auditor
	Metrics   *metrics.LedgerMetrics
	Logger    *logger.Logger
	MaxRows   int
}

type importer struct {
	processor sales.Processor
	directory hierarchy.Directory
	audit     auditor
	metrics   *metrics.LedgerMetrics
	logg      *logger.Logger
	maxRows   int
}

func NewImporter(params ImporterParams) (Importer, error) {
	if params.Processor == nil {
		return nil, errors.New("sale processor required")
	}
	if params.Directory == nil {
		return nil, errors.New("hierarchy directory required")
	}
	if params.Audit == nil {
		return nil, errors.New("audit log required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	maxRows := params.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &importer{
		processor: params.Processor,
		directory: params.Directory,
		audit:     params.Audit,
		metrics:   params.Metrics,
		logg:      params.Logger,
		maxRows:   maxRows,
	}, nil
}

func (i *importer) ImportSales(ctx context.Context, input Input) (*Result, error) {
	if len(input.Rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "import batch is empty")
	}
	if len(input.Rows) > i.maxRows {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("import batch exceeds %d rows", i.maxRows)).
			WithDetails(map[string]any{"rows": len(input.Rows), "maxRows": i.maxRows})
	}

	res := &Result{Errors: []RowError{}}
	resolver := newNameResolver(i.directory)
	for idx, row := range input.Rows {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "import interrupted")
		}
		if err := i.importRow(ctx, resolver, input, row); err != nil {
			res.ErrorCount++
			res.Errors = append(res.Errors, RowError{
				Row:     idx + 1,
				Code:    pkgerrors.CodeOf(err),
				Message: errorMessage(err),
			})
			continue
		}
		res.SuccessCount++
	}

	i.metrics.ObserveImport(res.SuccessCount, res.ErrorCount)
	logCtx := i.logg.WithFields(ctx, map[string]any{
		"import_rows":      len(input.Rows),
		"import_succeeded": res.SuccessCount,
		"import_failed":    res.ErrorCount,
	})
	i.logg.Info(logCtx, "sales import finished")

	var actor *uuid.UUID
	if input.PerformerID != uuid.Nil {
		actor = &input.PerformerID
	}
	i.audit.Append(ctx, actor, activity.ActionSalesImported,
		fmt.Sprintf("imported %d of %d sale rows (%d failed)", res.SuccessCount, len(input.Rows), res.ErrorCount))
	return res, nil
}

func (i *importer) importRow(ctx context.Context, resolver *nameResolver, input Input, row Row) error {
	chain, err := resolver.resolve(ctx, row)
	if err != nil {
		return err
	}
	voucherType, err := enums.ParseVoucherType(strings.TrimSpace(row.VoucherType))
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	_, err = i.processor.RecordSale(ctx, sales.RecordSaleInput{
		PerformerID:   input.PerformerID,
		PerformerRole: input.PerformerRole,
		PartnerID:     chain.Partner.ID,
		BranchID:      chain.Branch.ID,
		SellerID:      chain.Seller.ID,
		VoucherType:   voucherType,
		Quantity:      row.Quantity,
	})
	return err
}

func errorMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
