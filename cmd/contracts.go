package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/clientbook/internal/formatter"
	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/repositories"
	"github.com/desertthunder/clientbook/internal/shared"
)

// ContractAdd creates a contract from a JSON object for an existing client.
func (r *Runner) ContractAdd(ctx context.Context, cmd *cli.Command) error {
	c, err := contractRecord(cmd)
	if err != nil {
		return err
	}
	return r.withContracts(ctx, cmd, func(repo *repositories.ContractRepository) error {
		created, err := repo.Create(ctx, c)
		if err != nil {
			return err
		}
		return r.printContract(cmd, "✓ added contract id=%d: %s\n", created)
	})
}

func (r *Runner) ContractUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	c, err := contractRecord(cmd)
	if err != nil {
		return err
	}
	return r.withContracts(ctx, cmd, func(repo *repositories.ContractRepository) error {
		updated, err := repo.Update(ctx, id, c)
		if err != nil {
			return err
		}
		return r.printContract(cmd, "✓ updated contract id=%d: %s\n", updated)
	})
}

func (r *Runner) ContractClose(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	return r.withContracts(ctx, cmd, func(repo *repositories.ContractRepository) error {
		closed, err := repo.Close(ctx, id)
		if err != nil {
			return err
		}
		return r.printContract(cmd, "✓ closed contract id=%d: %s\n", closed)
	})
}

// ContractGet prints one contract with its client's name.
func (r *Runner) ContractGet(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	return r.withContracts(ctx, cmd, func(repo *repositories.ContractRepository) error {
		c, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.AttachClientNames(ctx, []*models.Contract{c}); err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(c.Record(), true)
		}
		return r.writePlain("%s\n", c)
	})
}

// ContractList prints one filtered, sorted page of contracts with the filtered total.
func (r *Runner) ContractList(ctx context.Context, cmd *cli.Command) error {
	k, n, err := pageFlags(cmd)
	if err != nil {
		return err
	}
	filter, err := contractFilterFromFlags(cmd)
	if err != nil {
		return err
	}
	return r.withContracts(ctx, cmd, func(repo *repositories.ContractRepository) error {
		var sort *repositories.SortSpec
		if by := cmd.String("sort"); by != "" {
			sort = &repositories.SortSpec{By: by, Asc: cmd.Bool("asc")}
		}

		contracts, err := repo.GetKN(ctx, k, n, filter, sort)
		if err != nil {
			return err
		}
		total, err := repo.Count(ctx, filter)
		if err != nil {
			return err
		}
		if err := repo.AttachClientNames(ctx, contracts); err != nil {
			return err
		}

		if cmd.Bool("json") {
			items := make([]models.ContractRecord, len(contracts))
			for i, c := range contracts {
				items[i] = c.Record()
			}
			return r.writeJSON(map[string]any{"page": k, "size": n, "total": total, "items": items}, true)
		}

		r.writePlainHeader(fmt.Sprintf("Contracts: page %d (size %d), %d matching", k, n, total))
		return r.writePlain("%s", formatter.ExportContractsToText(contracts))
	})
}

func (r *Runner) ContractCount(ctx context.Context, cmd *cli.Command) error {
	filter, err := contractFilterFromFlags(cmd)
	if err != nil {
		return err
	}
	return r.withContracts(ctx, cmd, func(repo *repositories.ContractRepository) error {
		n, err := repo.Count(ctx, filter)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(map[string]int{"count": n}, false)
		}
		return r.writePlain("%d\n", n)
	})
}

// withContracts opens the sql backend and runs fn over its contracts table.
func (r *Runner) withContracts(ctx context.Context, cmd *cli.Command, fn func(*repositories.ContractRepository) error) error {
	return r.withSQL(ctx, cmd, func(repo *repositories.DBFilterSort, config *shared.Config) error {
		return fn(repositories.NewContractRepository(repo.DB(), repo.Dialect(), r.logger))
	})
}

func (r *Runner) printContract(cmd *cli.Command, format string, c *models.Contract) error {
	if cmd.Bool("json") {
		return r.writeJSON(c.Record(), true)
	}
	return r.writePlain(format, c.ID(), c)
}

func contractRecord(cmd *cli.Command) (*models.Contract, error) {
	record := cmd.StringArg("record")
	if strings.TrimSpace(record) == "" {
		return nil, fmt.Errorf("%w: record", shared.ErrMissingArgument)
	}
	return models.ContractFromJSON(record)
}

// contractFilterFromFlags returns nil when no filter flag is set.
func contractFilterFromFlags(cmd *cli.Command) (*repositories.ContractFilter, error) {
	clientID := int64(cmd.Int("client"))
	if cmd.IsSet("client") && clientID <= 0 {
		return nil, fmt.Errorf("%w: --client must be a positive id, got %d", shared.ErrInvalidFlag, clientID)
	}
	f := repositories.ContractFilter{
		Number:    cmd.String("number"),
		ClientID:  clientID,
		Status:    cmd.String("status"),
		StartFrom: cmd.String("start-from"),
		StartTo:   cmd.String("start-to"),
		EndFrom:   cmd.String("end-from"),
		EndTo:     cmd.String("end-to"),
	}
	if f == (repositories.ContractFilter{}) {
		return nil, nil
	}
	return &f, nil
}
