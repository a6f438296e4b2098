/*
Package security provides inbound authentication, secret management, and
target-partition credential resolution for the cross-partition gateway.

# Secret Management

Load secrets from multiple providers with priority-based fallback:

	sm, err := secrets.NewSecretsManagerProvider(ctx, "us-gov-west-1", "")
	if err != nil {
		log.Fatal(err)
	}

	manager := secrets.NewManager([]secrets.SecretProvider{
		sm,
		secrets.NewEnvProvider("GATEWAY_SECRET_"),
	}, cacheConfig)

	token, err := manager.GetSecret(ctx, "cross-partition-inbound-token")
	if err != nil {
		log.Fatal(err)
	}

# Credential Resolution

Resolve the outbound target-partition credential with TTL caching:

	resolver := secrets.NewResolver(secrets.ResolverConfig{
		SecretName: "cross-partition-commercial-creds",
		TTL:        5 * time.Minute,
		StaleGrace: 30 * time.Second,
	}, manager)

	cred, err := resolver.Resolve(ctx)
	if err != nil {
		log.Fatal(err)
	}

# Inbound Authentication

Validate inbound bearer tokens inside the request handler:

	authorizer := auth.NewAuthorizer(auth.Config{
		SecretName: "cross-partition-inbound-token",
		CacheTTL:   time.Minute,
	}, manager)

	identity, err := authorizer.Authorize(ctx, auth.ExtractBearerToken(r))
*/
package security
