package postgres

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE journeys (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published', 'paused', 'archived')),
				settings JSONB NOT NULL DEFAULT '{}',
				steps JSONB NOT NULL DEFAULT '[]',
				entry_step_id VARCHAR(255) NOT NULL DEFAULT '',
				triggers JSONB NOT NULL DEFAULT '[]',
				current_version_id UUID,
				owner VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_journeys_organization ON journeys(organization_id);
			CREATE INDEX idx_journeys_status ON journeys(status);

			CREATE TABLE journey_versions (
				id UUID PRIMARY KEY,
				journey_id UUID NOT NULL REFERENCES journeys(id),
				organization_id VARCHAR(255) NOT NULL,
				number INT NOT NULL,
				entry_step_id VARCHAR(255) NOT NULL,
				steps JSONB NOT NULL,
				settings JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (journey_id, number)
			);

			CREATE INDEX idx_journey_versions_journey ON journey_versions(journey_id);

			CREATE TABLE journey_executions (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				journey_id UUID NOT NULL,
				version_id UUID NOT NULL REFERENCES journey_versions(id),
				contact_id VARCHAR(255) NOT NULL,
				trigger_data JSONB,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'paused', 'completed', 'exited', 'failed')),
				current_step_id VARCHAR(255) NOT NULL DEFAULT '',
				goal_met BOOLEAN NOT NULL DEFAULT FALSE,
				failure_reason TEXT NOT NULL DEFAULT '',
				entered_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_journey_contact ON journey_executions(journey_id, contact_id);
			CREATE INDEX idx_executions_journey ON journey_executions(journey_id);
			CREATE INDEX idx_executions_status ON journey_executions(status);

			CREATE TABLE step_executions (
				id UUID PRIMARY KEY,
				execution_id UUID NOT NULL REFERENCES journey_executions(id),
				step_id VARCHAR(255) NOT NULL,
				attempt INT NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'succeeded', 'failed', 'skipped')),
				result JSONB,
				error TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (execution_id, step_id, attempt)
			);

			CREATE INDEX idx_step_executions_execution ON step_executions(execution_id);
		`,
	}
}
