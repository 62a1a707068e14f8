package cli

import (
	"context"
	"fmt"

	"github.com/chronie/homemoney-sync/internal/client/models"
)

// parseEntityType reads the entity type from command args, defaulting to
// expense when omitted.
func parseEntityType(args []string) (models.EntityType, error) {
	if len(args) == 0 {
		return models.EntityExpense, nil
	}
	t := models.EntityType(args[0])
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q (expense or debt)", args[0])
	}
	return t, nil
}

func (a *App) list(ctx context.Context, args []string) {
	entityType, err := parseEntityType(args)
	if err != nil {
		fmt.Fprintln(a.out, err.Error())
		return
	}

	recs, err := a.records.List(ctx, entityType)
	if err != nil {
		a.log.Error(ctx, "error listing records", "error", err)
		return
	}

	for _, rec := range recs {
		a.printRecord(rec)
	}
	fmt.Fprintf(a.out, "%d %s record(s)\n", len(recs), entityType)
}

func (a *App) printRecord(rec models.Record) {
	synced := " "
	if !rec.IsSynced {
		synced = "*" // pending upload
	}

	switch rec.EntityType {
	case models.EntityExpense:
		e, err := rec.Expense()
		if err != nil {
			fmt.Fprintf(a.out, "%s%s <corrupt payload: %v>\n", synced, rec.ID, err)
			return
		}
		fmt.Fprintf(a.out, "%s%s %s %s %.2f %s\n", synced, rec.ID, e.Date, e.Type, e.Amount, e.Remark)
	case models.EntityDebt:
		d, err := rec.Debt()
		if err != nil {
			fmt.Fprintf(a.out, "%s%s <corrupt payload: %v>\n", synced, rec.ID, err)
			return
		}
		repaid := ""
		if d.IsRepaid {
			repaid = "repaid"
		}
		fmt.Fprintf(a.out, "%s%s %s %s %s %.2f %s %s\n", synced, rec.ID, d.Date, d.Type, d.Person, d.Amount, repaid, d.Remark)
	}
}
