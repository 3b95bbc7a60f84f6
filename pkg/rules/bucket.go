package rules

import (
	"github.com/lekkodev/sidecar/internal/xxhash32"
	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/value"
)

// bucketModulus is the space bucket() hashes into; thresholds are
// basis-points-with-three-decimal-places of traffic inclusion, in
// [0, bucketModulus].
const bucketModulus = 100000

// checkBucket implements Call(Bucket(key, threshold)): absent key is
// false, unsupported value kinds (bool) are an internal error, otherwise
// a salted 32-bit xxHash decides inclusion.
//
// The salt is the five-component concat(owner, repo name, namespace,
// context key, value bytes) in that fixed order.
func checkBucket(ast Rule, ctx map[string]value.Context, ec EvalContext) (bool, error) {
	ctxVal, ok := ctx[ast.callKey]
	if !ok {
		return false, nil
	}

	valBytes, ok := ctxVal.Bytes()
	if !ok {
		return false, errs.Internalf("bucket: context value for key %q has an unsupported kind for hashing", ast.callKey)
	}

	salt := saltedBytes(ec.Repo.Owner, ec.Repo.Name, ec.Namespace, ast.callKey, valBytes)
	hash := xxhash32.Sum32(salt, 0)
	return int(hash%bucketModulus) <= ast.callThreshold, nil
}

func saltedBytes(owner, repo, namespace, ctxKey string, valueBytes []byte) []byte {
	total := len(owner) + len(repo) + len(namespace) + len(ctxKey) + len(valueBytes)
	buf := make([]byte, 0, total)
	buf = append(buf, owner...)
	buf = append(buf, repo...)
	buf = append(buf, namespace...)
	buf = append(buf, ctxKey...)
	buf = append(buf, valueBytes...)
	return buf
}
