package server

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/service"
	"github.com/genomehub/metareg/pkg/store"
)

type advanceRequest struct {
	Target string `json:"target" validate:"required"`
	Force  bool   `json:"force"`
}

type finalizeRequest struct {
	Force           bool     `json:"force"`
	ExcludeGenomes  []string `json:"exclude_genomes"  validate:"dive,uuid4"`
	ExcludeDatasets []string `json:"exclude_datasets" validate:"dive,uuid4"`
	ReleaseDate     *string  `json:"release_date"     validate:"omitempty,datetime=2006-01-02"`
	// ConfirmWarnings acknowledges forced validation warnings up front;
	// there is no interactive prompt on the wire surface.
	ConfirmWarnings bool `json:"confirm_warnings"`
}

type genomesQuery struct {
	Status string `query:"status" json:"status" validate:"required"`
	Kind   string `query:"kind"   json:"kind"   validate:"required"`
}

func registerRoutes(api fiber.Router, metadataService *service.MetadataService, parser *HTTPRequestParser) {
	api.Post("/datasets", func(c *fiber.Ctx) error {
		var input store.NewDataset
		if err := parser.ParseBody(c, &input); err != nil {
			return err
		}
		datasetUUID, err := metadataService.SubmitDataset(c.UserContext(), input)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"dataset_uuid": datasetUUID})
	})

	api.Get("/datasets/:uuid", func(c *fiber.Ctx) error {
		dataset, err := metadataService.GetDataset(c.UserContext(), c.Params("uuid"))
		if err != nil {
			return err
		}

		return c.JSON(dataset)
	})

	api.Post("/datasets/:uuid/advance", func(c *fiber.Ctx) error {
		var input advanceRequest
		if err := parser.ParseBody(c, &input); err != nil {
			return err
		}
		status, err := metadataService.Advance(c.UserContext(), c.Params("uuid"), input.Target, input.Force)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{"status": status})
	})

	api.Post("/datasets/:uuid/mark-faulty", func(c *fiber.Ctx) error {
		if err := metadataService.MarkFaulty(c.UserContext(), c.Params("uuid")); err != nil {
			return err
		}

		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Post("/datasets/:uuid/children", func(c *fiber.Ctx) error {
		created, err := metadataService.CreateChildDatasets(c.UserContext(), c.Params("uuid"))
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"created": created})
	})

	api.Post("/reconcile-faulty", func(c *fiber.Ctx) error {
		if err := metadataService.ReconcileFaulty(c.UserContext()); err != nil {
			return err
		}

		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Post("/releases", func(c *fiber.Ctx) error {
		var input store.NewRelease
		if err := parser.ParseBody(c, &input); err != nil {
			return err
		}
		release, err := metadataService.CreateRelease(c.UserContext(), input)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(release)
	})

	api.Get("/releases/:id", func(c *fiber.Ctx) error {
		releaseID, err := parseReleaseID(c)
		if err != nil {
			return err
		}
		release, cErr := metadataService.GetRelease(c.UserContext(), releaseID)
		if cErr != nil {
			return cErr
		}

		return c.JSON(release)
	})

	api.Post("/releases/:id/finalize", func(c *fiber.Ctx) error {
		releaseID, err := parseReleaseID(c)
		if err != nil {
			return err
		}
		var input finalizeRequest
		if err := parser.ParseBody(c, &input); err != nil {
			return err
		}

		opts := store.FinalizeOptions{
			Force:           input.Force,
			ExcludeGenomes:  input.ExcludeGenomes,
			ExcludeDatasets: input.ExcludeDatasets,
		}
		if input.ReleaseDate != nil {
			date, parseErr := time.Parse("2006-01-02", *input.ReleaseDate)
			if parseErr != nil {
				return contract.NewError(contract.ErrorCodeInvalidParameterValue, parseErr.Error())
			}
			opts.ReleaseDate = &date
		}
		if input.ConfirmWarnings {
			opts.Confirm = func([]contract.ValidationError) bool { return true }
		}

		release, warnings, cErr := metadataService.FinalizeRelease(c.UserContext(), releaseID, opts)
		if cErr != nil {
			return cErr
		}

		return c.JSON(fiber.Map{"release": release, "warnings": warnings})
	})

	api.Post("/releases/:id/resolve-current", func(c *fiber.Ctx) error {
		releaseID, err := parseReleaseID(c)
		if err != nil {
			return err
		}
		if cErr := metadataService.ResolveCurrentSet(c.UserContext(), releaseID); cErr != nil {
			return cErr
		}

		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/genomes", func(c *fiber.Ctx) error {
		var query genomesQuery
		if err := parser.ParseQuery(c, &query); err != nil {
			return err
		}
		rows, err := metadataService.GenomesByStatusAndKind(c.UserContext(), query.Status, query.Kind)
		if err != nil {
			return err
		}

		return c.JSON(rows)
	})
}

func parseReleaseID(c *fiber.Ctx) (int64, error) {
	releaseID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, contract.NewError(
			contract.ErrorCodeInvalidParameterValue,
			"release id must be an integer",
		)
	}

	return releaseID, nil
}
