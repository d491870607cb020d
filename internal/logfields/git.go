package logfields

import "go.uber.org/zap"

func Repository(val string) zap.Field {
	return zap.String("git.repository", val)
}

func RepositoryDir(val string) zap.Field {
	return zap.String("git.repository_dir", val)
}

func BaseBranch(val string) zap.Field {
	return zap.String("git.base_branch", val)
}

func Branch(val string) zap.Field {
	return zap.String("git.branch", val)
}

func Commit(val string) zap.Field {
	return zap.String("git.commit", val)
}

func Remote(val string) zap.Field {
	return zap.String("git.remote", val)
}

func SubmodulePath(val string) zap.Field {
	return zap.String("git.submodule_path", val)
}
