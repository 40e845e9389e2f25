// Package service contains the application-specific use cases and business
// logic. It orchestrates interactions between domain objects and repositories
// (defined in internal/store) to fulfill application features.
//
// The centerpiece is the generation service, which drives progressive batch
// generation for exam sections: it claims a section for generation, sizes and
// scopes each sub-job, calls the external generation backend with retry and
// dedup context, persists accepted questions transactionally, and either
// enqueues a continuation or completes the run. Supporting pieces include the
// chapter scheduler, the quality checker applied at completion, and the stale
// job reaper that reclaims sections whose worker died mid-run.
//
// Services receive dependencies through constructor injection and depend on
// domain entities and repository interfaces (from store), never on specific
// infrastructure implementations. Domain and store errors are translated to
// application-level sentinels so the API layer can map them to status codes.
package service
