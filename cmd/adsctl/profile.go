package main

import (
	"github.com/dvcrn/adboard/internal/api"
	"github.com/spf13/cobra"
)

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change your profile",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			me, err := c.api.Profile.Me(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return c.print(me)
		},
	}

	var email, phone, about string
	update := &cobra.Command{
		Use:   "update",
		Short: "Change email, phone or about",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in api.ProfileUpdate
			if cmd.Flags().Changed("email") {
				in.Email = &email
			}
			if cmd.Flags().Changed("phone") {
				in.Phone = &phone
			}
			if cmd.Flags().Changed("about") {
				in.About = &about
			}
			me, err := c.api.Profile.Update(cmd.Context(), in)
			if err != nil {
				return explain(err)
			}
			return c.print(me)
		},
	}
	update.Flags().StringVar(&email, "email", "", "Email address")
	update.Flags().StringVar(&phone, "phone", "", "Phone number")
	update.Flags().StringVar(&about, "about", "", "Short description")

	cmd.AddCommand(get, update)
	return cmd
}
