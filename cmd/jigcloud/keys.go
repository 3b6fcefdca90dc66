package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	tokens "github.com/ji-devs/ji-cloud-sub012/internal/security/token"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "keys", Short: "Genera secretos"}

	cmd.AddCommand(&cobra.Command{
		Use:   "gen",
		Short: "Genera un LOCAL_TOKEN_SECRET nuevo (rotarlo invalida todas las sesiones)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := tokens.GenerateOpaqueToken(48)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "LOCAL_TOKEN_SECRET=%s\n", s)
			return nil
		},
	})

	var name string
	svc := &cobra.Command{
		Use:   "service-account",
		Short: "Genera el token de una cuenta de servicio y su entrada para SERVICE_ACCOUNTS",
		RunE: func(cmd *cobra.Command, args []string) error {
			name = strings.TrimSpace(name)
			if name == "" || strings.ContainsAny(name, "=,") {
				return fmt.Errorf("--name es requerido y no puede contener '=' ni ','")
			}
			secret, err := tokens.GenerateOpaqueToken(32)
			if err != nil {
				return err
			}
			token := "svc." + secret
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "token (entregar al servicio, no se vuelve a mostrar):\n  %s\n", token)
			fmt.Fprintf(out, "SERVICE_ACCOUNTS entry:\n  %s=%s\n", name, tokens.SHA256Base64URL(token))
			return nil
		},
	}
	svc.Flags().StringVar(&name, "name", "", "nombre de la cuenta (ej. image-worker)")
	cmd.AddCommand(svc)
	return cmd
}
