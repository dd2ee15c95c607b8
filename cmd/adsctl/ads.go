package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dvcrn/adboard/internal/api"
	"github.com/spf13/cobra"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ad id %q", arg)
	}
	return id, nil
}

func (c *cli) adsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ads",
		Short: "Browse and manage ads",
	}
	cmd.AddCommand(
		c.adsListCmd(),
		c.adsGetCmd(),
		c.adsCreateCmd(),
		c.adsUpdateCmd(),
		c.adsDeleteCmd(),
		c.adsMineCmd(),
	)
	return cmd
}

func (c *cli) adsListCmd() *cobra.Command {
	var (
		filter             api.AdFilter
		minPrice, maxPrice float64
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("min-price") {
				filter.MinPrice = &minPrice
			}
			if cmd.Flags().Changed("max-price") {
				filter.MaxPrice = &maxPrice
			}
			ads, err := c.api.Ads.List(cmd.Context(), filter)
			if err != nil {
				return explain(err)
			}
			return c.print(ads)
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.Category, "category", "", fmt.Sprintf("Category slug or id (e.g. %s, %s)", api.CategoryCars, api.CategoryRealEstate))
	f.Float64Var(&minPrice, "min-price", 0, "Minimum price")
	f.Float64Var(&maxPrice, "max-price", 0, "Maximum price")
	f.StringVar(&filter.DateFrom, "from", "", "Created on or after (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&filter.DateTo, "to", "", "Created on or before (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&filter.Search, "search", "", "Search in title and description")
	f.StringVar(&filter.Ordering, "ordering", api.OrderNewest, "Sort order: "+strings.Join(api.Orderings(), ", "))
	return cmd
}

func (c *cli) adsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show an ad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ad, err := c.api.Ads.Get(cmd.Context(), id)
			if err != nil {
				return explain(err)
			}
			return c.print(ad)
		},
	}
}

// adInputFlags binds the writable ad fields; only flags that were set end up
// in the input.
type adInputFlags struct {
	title, description, contact string
	price                       float64
	categoryID                  int64
	active                      bool
}

func (a *adInputFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&a.title, "title", "", "Title")
	f.StringVar(&a.description, "description", "", "Description")
	f.Float64Var(&a.price, "price", 0, "Price")
	f.Int64Var(&a.categoryID, "category-id", 0, "Category id")
	f.StringVar(&a.contact, "contact", "", "Contact information")
	f.BoolVar(&a.active, "active", true, "Whether the ad is listed")
}

func (a *adInputFlags) input(cmd *cobra.Command) api.AdInput {
	var in api.AdInput
	f := cmd.Flags()
	if f.Changed("title") {
		in.Title = &a.title
	}
	if f.Changed("description") {
		in.Description = &a.description
	}
	if f.Changed("price") {
		in.Price = &a.price
	}
	if f.Changed("category-id") {
		in.CategoryID = &a.categoryID
	}
	if f.Changed("contact") {
		in.ContactInfo = &a.contact
	}
	if f.Changed("active") {
		in.IsActive = &a.active
	}
	return in
}

func (c *cli) adsCreateCmd() *cobra.Command {
	flags := &adInputFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new ad",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ad, err := c.api.Ads.Create(cmd.Context(), flags.input(cmd))
			if err != nil {
				return explain(err)
			}
			return c.print(ad)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) adsUpdateCmd() *cobra.Command {
	flags := &adInputFlags{}
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of one of your ads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ad, err := c.api.Ads.Update(cmd.Context(), id, flags.input(cmd))
			if err != nil {
				return explain(err)
			}
			return c.print(ad)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) adsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one of your ads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.api.Ads.Delete(cmd.Context(), id); err != nil {
				return explain(err)
			}
			return c.print(map[string]interface{}{"deleted": id})
		},
	}
}

func (c *cli) adsMineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your ads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ads, err := c.api.Ads.Mine(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return c.print(ads)
		},
	}
}

func (c *cli) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List ad categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories, err := c.api.Categories.List(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(categories)
		},
	}
}
