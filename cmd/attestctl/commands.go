package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"attestor/internal/attestation/signer"
	"attestor/pkg/domain"
)

const keyEnv = "SIGNER_PRIVATE_KEY"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "attestctl",
		Short:         "Manage attestation signing keys and signatures",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newKeygenCmd(),
		newSignCmd(),
		newRecoverCmd(),
	)
	return root
}

type keyOutput struct {
	PrivateKey string `json:"private_key"`
	Address    string `json:"address"`
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new secp256k1 signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			s, err := signer.New(key)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), keyOutput{
				PrivateKey: fmt.Sprintf("0x%x", crypto.FromECDSA(key)),
				Address:    s.Address().String(),
			})
		},
	}
}

// attestationFlags are shared by sign and recover.
type attestationFlags struct {
	subject   string
	eligible  bool
	auxiliary string
	hasAux    bool
}

func (f *attestationFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.subject, "subject", "", "attested address (0x-prefixed)")
	cmd.Flags().BoolVar(&f.eligible, "eligible", false, "eligibility outcome")
	cmd.Flags().StringVar(&f.auxiliary, "aux", "", "auxiliary value, omitted when not set")
	_ = cmd.MarkFlagRequired("subject")
}

func (f *attestationFlags) attestation(cmd *cobra.Command) (signer.Attestation, error) {
	subject, err := domain.ParseAddress(f.subject)
	if err != nil {
		return signer.Attestation{}, fmt.Errorf("--subject: %w", err)
	}
	var aux *string
	if cmd.Flags().Changed("aux") {
		v := f.auxiliary
		aux = &v
	}
	return signer.NewAttestation(subject, f.eligible, aux), nil
}

type signOutput struct {
	Subject         string `json:"subject"`
	Eligible        bool   `json:"eligible"`
	AuxiliaryDigest string `json:"auxiliary_digest"`
	Signature       string `json:"signature"`
	Signer          string `json:"signer"`
}

func newSignCmd() *cobra.Command {
	var (
		flags attestationFlags
		key   string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign an attestation offline",
		Long:  "Sign an attestation offline. The key is read from --key or " + keyEnv + ".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				key = os.Getenv(keyEnv)
			}
			s, err := signer.FromHex(key)
			if err != nil {
				return err
			}
			att, err := flags.attestation(cmd)
			if err != nil {
				return err
			}
			sig := s.SignAttestation(att)
			return writeJSON(cmd.OutOrStdout(), signOutput{
				Subject:         att.Subject.String(),
				Eligible:        att.Eligible,
				AuxiliaryDigest: fmt.Sprintf("0x%x", att.AuxiliaryDigest),
				Signature:       sig.Hex(),
				Signer:          s.Address().String(),
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&key, "key", "", "hex private key (defaults to $"+keyEnv+")")
	return cmd
}

type recoverOutput struct {
	Signer string `json:"signer"`
}

func newRecoverCmd() *cobra.Command {
	var (
		flags     attestationFlags
		signature string
	)
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Recover the signer address from a compact signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			att, err := flags.attestation(cmd)
			if err != nil {
				return err
			}
			sig, err := signer.ParseSignature(signature)
			if err != nil {
				return fmt.Errorf("--signature: %w", err)
			}
			addr, err := signer.Recover(att, sig)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), recoverOutput{Signer: addr.String()})
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&signature, "signature", "", "64-byte compact signature (0x-prefixed hex)")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
