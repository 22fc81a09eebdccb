package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/saulo-duarte/chronos-goals/internal/container"
	"github.com/saulo-duarte/chronos-goals/internal/goal"
	util "github.com/saulo-duarte/chronos-goals/internal/utils"
)

// goalNode is one entry of an import file. Children inherit the category and
// start date of their parent and default to the next finer type.
type goalNode struct {
	Title     string     `yaml:"title"`
	Type      string     `yaml:"type"`
	Category  string     `yaml:"category"`
	StartDate string     `yaml:"start_date"`
	Minutes   *int       `yaml:"minutes"`
	Children  []goalNode `yaml:"children"`
}

type importFile struct {
	Goals []goalNode `yaml:"goals"`
}

func parseImportFile(r io.Reader) (*importFile, error) {
	var f importFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode import file: %w", err)
	}
	if len(f.Goals) == 0 {
		return nil, fmt.Errorf("import file has no goals")
	}
	return &f, nil
}

type goalCreator interface {
	CreateForUser(ctx context.Context, userID uuid.UUID, dto goal.CreateGoalDTO) (*goal.GoalWithChildrenResponse, error)
}

// importTree creates every node top-down and returns how many goals were created.
func importTree(ctx context.Context, svc goalCreator, userID uuid.UUID, nodes []goalNode) (int, error) {
	created := 0
	var walk func(nodes []goalNode, parent *goal.Goal, path string) error
	walk = func(nodes []goalNode, parent *goal.Goal, path string) error {
		for i, n := range nodes {
			where := fmt.Sprintf("%s[%d]", path, i)
			dto, err := n.toDTO(parent)
			if err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
			res, err := svc.CreateForUser(ctx, userID, dto)
			if err != nil {
				return fmt.Errorf("%s %q: %w", where, n.Title, err)
			}
			created++
			if err := walk(n.Children, res.Goal, where+".children"); err != nil {
				return err
			}
		}
		return nil
	}
	err := walk(nodes, nil, "goals")
	return created, err
}

func (n goalNode) toDTO(parent *goal.Goal) (goal.CreateGoalDTO, error) {
	dto := goal.CreateGoalDTO{
		Title:    n.Title,
		Type:     goal.GoalType(n.Type),
		Category: goal.Category(n.Category),
		Minutes:  n.Minutes,
	}

	if parent != nil {
		pid := parent.ID
		dto.ParentID = &pid
		if dto.Type == "" {
			childType, ok := parent.Type.ChildType()
			if !ok {
				return dto, fmt.Errorf("daily goal %q cannot have children", parent.Title)
			}
			dto.Type = childType
		}
		if dto.Category == "" {
			dto.Category = parent.Category
		}
		dto.StartDate = parent.StartDate
	}

	if n.StartDate != "" {
		day, err := util.ParseLocalDate(n.StartDate)
		if err != nil {
			return dto, fmt.Errorf("invalid start_date %q: %w", n.StartDate, err)
		}
		dto.StartDate = day
	}

	if err := validateDTO(dto); err != nil {
		return dto, err
	}
	return dto, nil
}

func validateDTO(dto goal.CreateGoalDTO) error {
	if dto.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !dto.Type.IsValid() {
		return fmt.Errorf("invalid type %q", dto.Type)
	}
	if !dto.Category.IsValid() {
		return fmt.Errorf("invalid category %q", dto.Category)
	}
	return nil
}

func importCmd() *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Import a nested goal tree for a user",
		Long: `Reads a YAML goal tree and creates it through the goal service, so
every parent link is validated like an API request.

Example file:

  goals:
    - title: Ship v2
      type: quarterly
      category: professional
      start_date: 2026-10-01
      children:
        - title: Beta in October
          children:
            - title: Fix onboarding
              start_date: 2026-10-12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("invalid --user %q: %w", userFlag, err)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			tree, err := parseImportFile(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := container.New(ctx)
			if err != nil {
				return err
			}
			defer c.Close(context.Background())

			if _, err := c.UserContainer.Repo.GetByID(userID.String()); err != nil {
				return fmt.Errorf("user %s: %w", userID, err)
			}

			n, err := importTree(ctx, c.GoalContainer.Service, userID, tree.Goals)
			cmd.Printf("Imported %d goal(s)\n", n)
			return err
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "owner of the imported goals")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
