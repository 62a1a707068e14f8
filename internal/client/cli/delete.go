package cli

import (
	"context"
	"fmt"
)

func (a *App) delete(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(a.out, "Usage: delete <expense|debt> <id>")
		return
	}

	entityType, err := parseEntityType(args)
	if err != nil {
		fmt.Fprintln(a.out, err.Error())
		return
	}
	id := args[1]

	if err := a.records.Delete(ctx, entityType, id); err != nil {
		a.log.Error(ctx, "error deleting record", "error", err)
		return
	}

	fmt.Fprintf(a.out, "Deleted %s %s (queued for sync)\n", entityType, id)
}
