package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flatconnect/internal/app"
	"flatconnect/internal/config"
	"flatconnect/internal/pages"
	"flatconnect/internal/workflow"
)

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if password == "" {
					p, err := prompt(cmd.InOrStdin(), "Password: ")
					if err != nil {
						return err
					}
					password = p
				}
				out, err := a.Auth().Login(ctx, email, password)
				if err != nil {
					return err
				}
				if asJSON() {
					return printJSON(out)
				}
				fmt.Printf("Logged in as %s (%s). Landing page: %s\n", out.Result.User.Username, out.Result.Profile.Role, out.Landing)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email or username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func signupCmd() *cobra.Command {
	var form workflow.SignupForm
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Auth().Signup(ctx, form)
				if err != nil {
					return err
				}
				if asJSON() {
					return printJSON(out)
				}
				fmt.Println("Registration successful. Complete your profile with fc profile complete.")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&form.Email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&form.Password, "password", "p", "", "password")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm", "", "password again")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Auth().Logout(ctx); err != nil {
					return err
				}
				fmt.Println("Logged out.")
				return nil
			})
		},
	}
}

func googleURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "google-url",
		Short: "Print the Google sign-in URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Auth().GoogleURL(ctx)
				if err != nil {
					return err
				}
				if asJSON() {
					return printJSON(map[string]string{"authorization_url": u})
				}
				fmt.Println(u)
				return nil
			})
		},
	}
}

func useCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <base-url>",
		Short: "Point the workspace at a backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(viper.GetString("workspace"), ".env")
			if err := setEnvValue(path, "FLATCONNECT_BASE_URL", args[0]); err != nil {
				return err
			}
			fmt.Printf("Backend set to %s in %s\n", args[0], path)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage flatconnect.yml"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default flatconnect.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			base := viper.GetString("base-url")
			if base == "" {
				base = config.DefaultBaseURL
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(base)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printJSON(a.Config)
			})
		},
	}
}

func profileCmd() *cobra.Command {
	prof := &cobra.Command{Use: "profile", Short: "View and edit your profile"}
	prof.AddCommand(profileShowCmd())
	prof.AddCommand(profileStatusCmd())
	prof.AddCommand(profileSaveCmd("complete", "Complete your profile after signup"))
	prof.AddCommand(profileSaveCmd("edit", "Edit your profile"))
	return prof
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.RequireSession(ctx); err != nil {
					return err
				}
				p, err := a.Profiles().View(ctx)
				if err != nil {
					return err
				}
				if asJSON() {
					return printJSON(p)
				}
				pages.RenderProfile(os.Stdout, p)
				return nil
			})
		},
	}
}

func profileStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether your profile exists and is complete",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.RequireSession(ctx); err != nil {
					return err
				}
				st, err := a.Client.ProfileStatus(ctx)
				if err != nil {
					return &workflow.OpError{Op: workflow.OpLoad, Err: err}
				}
				return printJSON(st)
			})
		},
	}
}

// profileSaveCmd builds complete and edit. Edit starts from the stored profile
// so only the flags given change.
func profileSaveCmd(use, short string) *cobra.Command {
	var form workflow.ProfileForm
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.RequireSession(ctx); err != nil {
					return err
				}
				profiles := a.Profiles()
				if use == "complete" {
					saved, landing, err := profiles.Complete(ctx, form)
					if err != nil {
						return err
					}
					if asJSON() {
						return printJSON(map[string]any{"profile": saved, "landing": landing})
					}
					fmt.Printf("Profile saved. Landing page: %s\n", landing)
					return nil
				}
				cur, err := profiles.View(ctx)
				if err != nil {
					return err
				}
				merged := workflow.FormFromProfile(cur)
				overlay(cmd, &merged, form)
				saved, err := profiles.Edit(ctx, merged)
				if err != nil {
					return err
				}
				if asJSON() {
					return printJSON(saved)
				}
				pages.RenderProfile(os.Stdout, saved)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.FullName, "full-name", "", "full name")
	f.StringVar(&form.Phone, "phone", "", "phone number")
	f.StringVar(&form.EmergencyContact, "emergency-contact", "", "emergency contact")
	f.StringVar(&form.BuildingBlock, "block", "", "building or block")
	f.StringVar(&form.FlatNumber, "flat", "", "flat number")
	f.StringVar(&form.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	f.StringVar(&form.Role, "role", "", "user, worker, secretary or admin")
	f.StringVar(&form.Specialization, "specialization", "", "worker specialization")
	return cmd
}

func overlay(cmd *cobra.Command, dst *workflow.ProfileForm, src workflow.ProfileForm) {
	set := func(flag string, to *string, v string) {
		if cmd.Flags().Changed(flag) {
			*to = v
		}
	}
	set("full-name", &dst.FullName, src.FullName)
	set("phone", &dst.Phone, src.Phone)
	set("emergency-contact", &dst.EmergencyContact, src.EmergencyContact)
	set("block", &dst.BuildingBlock, src.BuildingBlock)
	set("flat", &dst.FlatNumber, src.FlatNumber)
	set("dob", &dst.DateOfBirth, src.DateOfBirth)
	set("role", &dst.Role, src.Role)
	set("specialization", &dst.Specialization, src.Specialization)
}
