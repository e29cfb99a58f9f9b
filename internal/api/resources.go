package api

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/vault"
)

// passwordSalt is the static salt the middleware expects mixed into the
// client-side password hash. It is not a secret.
const passwordSalt = "Rd!@cc111$ecur3P@$w0rd$@lt#H@$h"

// HashPassword derives the credential hash sent in the login headers.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password + passwordSalt))
	return "0x" + hex.EncodeToString(sum[:])
}

// Team is one row from GetCompanyTeams.
type Team struct {
	Name         string
	VaultContent string
}

// Machine is one row from GetTeamMachines.
type Machine struct {
	Name         string
	TeamName     string
	VaultContent string
}

// Repository is one row from GetTeamRepositories.
type Repository struct {
	Name         string
	GUID         string
	VaultContent string
}

// Authenticate logs in with email and plaintext password and stores the
// issued request token.
func (c *Client) Authenticate(email, password, sessionName string) error {
	if sessionName == "" {
		sessionName = "rediacc-cli"
	}
	_, err := c.Login(email, HashPassword(password), sessionName)
	return err
}

// Logout revokes the stored token server-side, then clears it locally.
// The local token is cleared even when revocation fails.
func (c *Client) Logout() error {
	_, callErr := c.Call("DeleteUserRequest", nil)
	if err := c.tokens.Clear(); err != nil {
		return err
	}
	if callErr != nil && !errors.IsCode(callErr, errors.ErrAuth) {
		return callErr
	}
	return nil
}

// ListTeams returns the teams visible to the authenticated user.
func (c *Client) ListTeams() ([]Team, error) {
	resp, err := c.Call("GetCompanyTeams", nil)
	if err != nil {
		return nil, err
	}
	var teams []Team
	for _, row := range resp.Rows(1) {
		name := row.String("teamName")
		if name == "" {
			continue
		}
		teams = append(teams, Team{Name: name, VaultContent: row.String("vaultContent")})
	}
	return teams, nil
}

// ListMachines returns the machines of a team. The middleware spreads rows
// across result sets, so all of them are scanned.
func (c *Client) ListMachines(teamName string) ([]Machine, error) {
	resp, err := c.Call("GetTeamMachines", map[string]any{"teamName": teamName})
	if err != nil {
		return nil, err
	}
	var machines []Machine
	for i := range resp.ResultSets {
		for _, row := range resp.Rows(i) {
			name := row.String("machineName")
			if name == "" {
				continue
			}
			machines = append(machines, Machine{
				Name:         name,
				TeamName:     teamName,
				VaultContent: row.String("vaultContent"),
			})
		}
	}
	return machines, nil
}

// GetMachine finds one machine of a team by name.
func (c *Client) GetMachine(teamName, machineName string) (*Machine, error) {
	machines, err := c.ListMachines(teamName)
	if err != nil {
		return nil, err
	}
	for i := range machines {
		if machines[i].Name == machineName {
			return &machines[i], nil
		}
	}
	return nil, errors.New(errors.ErrExec,
		fmt.Sprintf("machine %q not found in team %q", machineName, teamName),
		"List machines with: rediacc list machines --team "+teamName)
}

// ListRepositories returns the repositories of a team.
func (c *Client) ListRepositories(teamName string) ([]Repository, error) {
	resp, err := c.Call("GetTeamRepositories", map[string]any{"teamName": teamName})
	if err != nil {
		return nil, err
	}
	var repos []Repository
	for _, row := range resp.Rows(1) {
		name := row.String("repositoryName")
		if name == "" {
			continue
		}
		repos = append(repos, Repository{
			Name:         name,
			GUID:         row.String("repositoryGuid"),
			VaultContent: row.String("vaultContent"),
		})
	}
	return repos, nil
}

// GetRepository finds one repository of a team by name.
func (c *Client) GetRepository(teamName, repoName string) (*Repository, error) {
	repos, err := c.ListRepositories(teamName)
	if err != nil {
		return nil, err
	}
	for i := range repos {
		if repos[i].Name == repoName {
			return &repos[i], nil
		}
	}
	return nil, errors.New(errors.ErrExec,
		fmt.Sprintf("repository %q not found in team %q", repoName, teamName),
		"List repositories with: rediacc list repositories --team "+teamName)
}

// OrganizationVault fetches the organization-wide vault blob.
func (c *Client) OrganizationVault() (string, error) {
	resp, err := c.Call("GetOrganizationVault", nil)
	if err != nil {
		return "", err
	}
	for i := range resp.ResultSets {
		for _, row := range resp.Rows(i) {
			if v := row.String("vaultContent"); v != "" {
				return v, nil
			}
		}
	}
	return "", nil
}

// DecodeVault turns a row's vault content into a Secret, decrypting with the
// master password when the blob is encrypted. Plaintext JSON vaults pass
// through untouched.
func DecodeVault(kind vault.OwnerKind, ownerName, content, masterPassword string) (*vault.Secret, error) {
	if content == "" {
		return nil, errors.New(errors.ErrVault,
			fmt.Sprintf("%s %q has no vault configured", kind, ownerName),
			"Configure the vault in the Rediacc console")
	}
	payload := []byte(content)
	if vault.IsEncrypted(content) {
		if masterPassword == "" {
			return nil, errors.New(errors.ErrVault,
				fmt.Sprintf("vault for %s %q is encrypted and no master password is available", kind, ownerName),
				"Log in again to supply the master password")
		}
		plain, err := vault.Decrypt(content, masterPassword)
		if err != nil {
			return nil, err
		}
		payload = plain
	}
	return vault.ParseSecret(kind, ownerName, payload)
}
