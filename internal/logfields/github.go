package logfields

import "go.uber.org/zap"

func PullRequest(val int) zap.Field {
	return zap.Int("github.pull_request", val)
}

func RepositoryOwner(val string) zap.Field {
	return zap.String("github.repository_owner", val)
}

func Login(val string) zap.Field {
	return zap.String("github.login", val)
}

func Label(val string) zap.Field {
	return zap.String("github.label", val)
}
