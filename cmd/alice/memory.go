// Copyright 2026 The Alice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/wojcikm/alice/pkg/memory"
	"github.com/wojcikm/alice/pkg/search"
)

// MemoryCmd groups the memory subcommands.
type MemoryCmd struct {
	Remember   RememberCmd   `cmd:"" help:"Store a new memory."`
	Recall     RecallCmd     `cmd:"" help:"Search memories with a natural language query."`
	Update     UpdateCmd     `cmd:"" help:"Change an existing memory."`
	Forget     ForgetCmd     `cmd:"" help:"Delete a memory."`
	List       ListCmd       `cmd:"" help:"List stored memories."`
	Categories CategoriesCmd `cmd:"" help:"List the memory categories."`
}

type RememberCmd struct {
	Name        string   `required:"" help:"Short name of the memory."`
	Category    string   `required:"" help:"Category, e.g. resources."`
	Subcategory string   `required:"" help:"Subcategory, e.g. travel."`
	Text        []string `arg:"" help:"What to remember."`
}

func (c *RememberCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	rt, err := cli.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	rec, err := rt.Memory().Remember(ctx, memory.RememberRequest{
		Name:        c.Name,
		Text:        strings.Join(c.Text, " "),
		Category:    c.Category,
		Subcategory: c.Subcategory,
	})
	if err != nil {
		return err
	}
	fmt.Println(memory.Render(rec))
	return nil
}

type RecallCmd struct {
	Query       []string `arg:"" help:"What to look for."`
	Limit       int      `help:"Maximum number of memories." default:"15"`
	Category    string   `help:"Only search this category."`
	Subcategory string   `help:"Only search this subcategory."`
}

func (c *RecallCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	rt, err := cli.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.Memory().Recall(ctx, memory.RecallRequest{
		Query:    strings.Join(c.Query, " "),
		Filters:  search.Filters{Category: c.Category, Subcategory: c.Subcategory},
		Limit:    c.Limit,
		AIName:   rt.Config().Agent.AIName,
		UserName: "User",
	})
	if err != nil {
		return err
	}
	fmt.Println(res.Document.Text)
	return nil
}

type UpdateCmd struct {
	UUID        string   `arg:"" help:"Memory UUID."`
	Name        string   `help:"New name."`
	Category    string   `help:"New category."`
	Subcategory string   `help:"New subcategory."`
	Text        []string `arg:"" optional:"" help:"New text."`
}

func (c *UpdateCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	rt, err := cli.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	rec, err := rt.Memory().Update(ctx, memory.UpdateRequest{
		MemoryUUID:  c.UUID,
		Name:        c.Name,
		Text:        strings.Join(c.Text, " "),
		Category:    c.Category,
		Subcategory: c.Subcategory,
	})
	if err != nil {
		return err
	}
	fmt.Println(memory.Render(rec))
	return nil
}

type ForgetCmd struct {
	UUID string `arg:"" help:"Memory UUID."`
}

func (c *ForgetCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	rt, err := cli.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	rec, err := rt.Memory().Forget(ctx, c.UUID)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted memory: %s\n", rec.Name)
	return nil
}

type ListCmd struct {
	Category    string `help:"Only list this category."`
	Subcategory string `help:"Only list this subcategory."`
	Limit       int    `help:"Maximum number of memories (0 = all)."`
}

func (c *ListCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	rt, err := cli.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	recs, err := rt.Memory().List(ctx, c.Category, c.Subcategory, c.Limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No memories stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UUID\tNAME\tCATEGORY\tUPDATED")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\n", r.UUID, r.Name, r.Category.Name, r.Category.Subcategory,
			r.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

type CategoriesCmd struct{}

func (c *CategoriesCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	rt, err := cli.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	cats, err := rt.Memory().Categories(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tSUBCATEGORY\tDESCRIPTION")
	for _, cat := range cats {
		fmt.Fprintf(w, "%s\t%s\t%s\n", cat.Name, cat.Subcategory, cat.Description)
	}
	return w.Flush()
}
