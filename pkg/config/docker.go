package config

import (
	"os"
	"strings"
	"sync"
)

// DockerHostGateway is the name Docker Desktop gives the host machine.
const DockerHostGateway = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker points loopback datasource hosts at the Docker host
// gateway when sqlgate runs in a container, so a database on the developer's
// machine stays reachable. Other hosts are returned unchanged.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if !inDocker || !isLoopback(host) {
		return host
	}
	return DockerHostGateway
}

func isLoopback(host string) bool {
	switch strings.ToLower(strings.Trim(host, "[]")) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
