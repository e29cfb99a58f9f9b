// Package session resolves a machine or machine+repository into a concrete
// SSH target and runs interactive or single-command sessions against it.
package session

import (
	"fmt"
	"path"

	"github.com/rediacc/desktop/internal/api"
	"github.com/rediacc/desktop/internal/credential"
	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/logger"
	"github.com/rediacc/desktop/internal/vault"
	"github.com/rediacc/desktop/pkg/sshutil"
)

// mountsFolder is where repository working copies live under a machine's
// datastore.
const mountsFolder = "mounts"

// Target is a fully resolved session destination: the SSH endpoint plus the
// pre-bound environment and working directory for the repository case.
type Target struct {
	Team       string
	Machine    string
	Repository string

	SSH     sshutil.Target
	Env     map[string]string
	Workdir string
}

// Broker turns team/machine/repository names into Targets, staging the
// team's SSH key for the duration of the session.
type Broker struct {
	client         *api.Client
	credentials    *credential.Manager
	masterPassword string
	log            logger.Logger
}

func NewBroker(client *api.Client, credentials *credential.Manager, masterPassword string, log logger.Logger) *Broker {
	if log == nil {
		log = logger.Default()
	}
	return &Broker{client: client, credentials: credentials, masterPassword: masterPassword, log: log}
}

// Resolve builds a session target. With repository empty the target is the
// bare machine; with it set, the working directory and environment are
// bound to the repository's mount path. dev relaxes host key pinning for
// that one resolution and is never carried anywhere else.
func (b *Broker) Resolve(team, machine, repository string, dev bool) (*Target, *credential.Staged, error) {
	teams, err := b.client.ListTeams()
	if err != nil {
		return nil, nil, err
	}
	var teamVaultContent string
	found := false
	for _, t := range teams {
		if t.Name == team {
			teamVaultContent = t.VaultContent
			found = true
			break
		}
	}
	if !found {
		return nil, nil, errors.New(errors.ErrExec,
			fmt.Sprintf("team %q not found", team),
			"List teams with: rediacc list teams")
	}

	teamSecret, err := api.DecodeVault(vault.OwnerTeam, team, teamVaultContent, b.masterPassword)
	if err != nil {
		return nil, nil, err
	}

	machineRow, err := b.client.GetMachine(team, machine)
	if err != nil {
		return nil, nil, err
	}
	machineSecret, err := api.DecodeVault(vault.OwnerMachine, machine, machineRow.VaultContent, b.masterPassword)
	if err != nil {
		return nil, nil, err
	}

	ip := machineSecret.String(vault.FieldIP)
	user := machineSecret.String(vault.FieldUser)

	var ssh sshutil.Target
	aliased := ip == "" || user == ""
	switch {
	case !aliased:
		ssh = sshutil.Target{
			Host:     ip,
			Port:     machineSecret.Int(vault.FieldPort, 22),
			User:     user,
			Insecure: dev,
		}
	case dev:
		// Development machines often carry no endpoint in their vault; the
		// machine name then doubles as a ~/.ssh/config alias.
		ssh = sshutil.ResolveDevAlias(machine)
		b.log.Debug("machine vault for %s has no endpoint; resolved ssh config alias to %s", machine, ssh.Host)
	default:
		return nil, nil, errors.New(errors.ErrVault,
			fmt.Sprintf("machine vault for %q is missing ip or user", machine),
			"Update the machine configuration in the Rediacc console")
	}

	// The vault key always wins when present. An aliased dev target may fall
	// back to its IdentityFile or the agent instead.
	var staged *credential.Staged
	if !aliased || teamSecret.HasKeyMaterial() {
		staged, err = b.credentials.Stage(teamSecret, machineSecret.HostEntry())
		if err != nil {
			return nil, nil, err
		}
		ssh.KeyPath = staged.KeyPath
		ssh.KnownHostsPath = staged.KnownHostsPath
	}

	target := &Target{
		Team:    team,
		Machine: machine,
		SSH:     ssh,
		Env: map[string]string{
			"MACHINE_NAME": machine,
			"TEAM_NAME":    team,
		},
	}
	if target.SSH.KnownHostsPath == "" && !dev {
		staged.Release()
		return nil, nil, errors.New(errors.ErrVault,
			fmt.Sprintf("machine vault for %q has no host_entry to pin the host key", machine),
			"Add a host_entry field in the Rediacc console, or use --dev for development machines")
	}

	if repository != "" {
		datastore := machineSecret.String(vault.FieldDatastore)
		if datastore == "" {
			staged.Release()
			return nil, nil, errors.New(errors.ErrVault,
				fmt.Sprintf("machine vault for %q is missing the datastore field", machine),
				"Update the machine configuration in the Rediacc console")
		}
		repo, err := b.client.GetRepository(team, repository)
		if err != nil {
			staged.Release()
			return nil, nil, err
		}
		mountPath := path.Join(datastore, mountsFolder, repo.GUID)
		target.Repository = repository
		target.Workdir = mountPath
		target.Env["REPOSITORY_NAME"] = repository
		target.Env["REPOSITORY_PATH"] = mountPath
	}

	b.log.Debug("resolved session target %s@%s for team %s", ssh.User, ssh.Host, team)
	return target, staged, nil
}

// MountPath resolves where a repository lives on its machine, for sync.
func (b *Broker) MountPath(team, machine, repository string, dev bool) (*Target, *credential.Staged, error) {
	if repository == "" {
		return nil, nil, errors.New(errors.ErrPlan,
			"a repository is required for sync",
			"Pass --repository with the repository name")
	}
	return b.Resolve(team, machine, repository, dev)
}
